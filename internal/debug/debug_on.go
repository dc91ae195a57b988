//go:build debug

// Package debug provides assertion and lock-state helpers compiled in
// only under the "debug" build tag, so release builds pay nothing for
// them. Adapted from the donor's cmn/debug package, trimmed to this
// module's subsystems.
package debug

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/aisdns/adb/3rdparty/glog"
)

var smodules = map[string]uint8{
	"adb":    glog.SmoduleADB,
	"cache":  glog.SmoduleCache,
	"hk":     glog.SmoduleHK,
	"memsys": glog.SmoduleMemsys,
}

func init() { loadLogLevel() }

// Enabled is true when this build was compiled with -tags debug.
const Enabled = true

func Errorf(f string, a ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf("[DEBUG] "+f, a...))
}

func Infof(f string, a ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf("[DEBUG] "+f, a...))
}

func _panic(a ...interface{}) {
	msg := "DEBUG PANIC: "
	if len(a) > 0 {
		msg += fmt.Sprint(a...)
	}
	buffer := bytes.NewBuffer(make([]byte, 0, 1024))
	fmt.Fprint(buffer, msg)
	for i := 2; i < 9; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !strings.Contains(file, "adb") && !strings.Contains(file, "cache") {
			break
		}
		f := file
		if idx := strings.LastIndexByte(f, '/'); idx >= 0 {
			f = f[idx+1:]
		}
		if buffer.Len() > len(msg) {
			buffer.WriteString(" <- ")
		}
		fmt.Fprintf(buffer, "%s:%d", f, line)
	}
	glog.Errorf("%s", buffer.Bytes())
	glog.Flush()
	panic(msg)
}

// Assert panics (in debug builds only) when cond is false. Used to enforce
// the structural invariants spec.md §7 calls fatal: lock-order violations,
// bucket refcount underflow, freeing an entity that is still linked.
func Assert(cond bool, a ...interface{}) {
	if !cond {
		_panic(a...)
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		_panic(msg)
	}
}

func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

// AssertMutexLocked peeks at sync.Mutex's internal state via reflection to
// catch lock-order violations during development; never call on a hot path
// outside debug builds.
func AssertMutexLocked(m *sync.Mutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("state")
	AssertMsg(state.Int()&1 == 1, "mutex not locked")
}

func AssertRWMutexLocked(m *sync.RWMutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("w").FieldByName("state")
	AssertMsg(state.Int()&1 == 1, "rwmutex not locked")
}

// loadLogLevel sets debug verbosity per package from AIS_ADB_DEBUG, e.g.
// AIS_ADB_DEBUG=adb=2,hk=1 (same spirit as GODEBUG).
func loadLogLevel() {
	val := os.Getenv("AIS_ADB_DEBUG")
	if val == "" {
		return
	}
	for _, ele := range strings.Split(val, ",") {
		pair := strings.SplitN(ele, "=", 2)
		if len(pair) != 2 {
			fatalMsg("failed to parse module=level element: %q", ele)
		}
		module, level := pair[0], pair[1]
		smod, exists := smodules[module]
		if !exists {
			fatalMsg("unknown module: %s", module)
		}
		lvl, err := strconv.Atoi(level)
		if err != nil || lvl <= 0 {
			fatalMsg("invalid verbosity level=%s: %v", level, err)
		}
		glog.SetV(smod, glog.Level(lvl))
	}
}

func fatalMsg(f string, v ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(f, v...))
	os.Exit(1)
}
