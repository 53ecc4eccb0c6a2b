package logging

import (
	"fmt"
	"sync"
)

// FailureHandler receives failures that escaped all other handling: panics
// recovered at the process boundary and fatal synthesis errors with no
// caller left to report to.
type FailureHandler func(err error)

var (
	failureMu        sync.Mutex
	failureHandler   FailureHandler
	failureInstalled bool
)

// InstallFailureHandler installs the process-wide fallback failure handler.
// Installation happens at most once; repeated calls are no-ops so call-site
// discipline is not required.
func InstallFailureHandler(h FailureHandler) {
	failureMu.Lock()
	defer failureMu.Unlock()
	if failureInstalled {
		return
	}
	failureInstalled = true
	failureHandler = h
}

// ReportFailure routes an error to the installed handler, or logs it when no
// handler was ever installed.
func ReportFailure(err error) {
	if err == nil {
		return
	}
	failureMu.Lock()
	h := failureHandler
	failureMu.Unlock()
	if h != nil {
		h(err)
		return
	}
	Error("unhandled failure", "error", err)
}

// RecoverAndReport recovers a panic and routes it through ReportFailure.
// Intended as `defer logging.RecoverAndReport()` at the process entry point.
func RecoverAndReport() {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", r)
		}
		ReportFailure(err)
	}
}

// resetFailureHandler clears installation state. Test hook only.
func resetFailureHandler() {
	failureMu.Lock()
	defer failureMu.Unlock()
	failureHandler = nil
	failureInstalled = false
}
