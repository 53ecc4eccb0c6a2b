package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallFailureHandler_AtMostOnce(t *testing.T) {
	defer resetFailureHandler()

	var got []error
	InstallFailureHandler(func(err error) { got = append(got, err) })
	// A second install is silently ignored.
	InstallFailureHandler(func(err error) { t.Fatal("second handler must never run") })

	ReportFailure(fmt.Errorf("boom"))
	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "boom")
}

func TestReportFailure_NilIsNoop(t *testing.T) {
	defer resetFailureHandler()

	InstallFailureHandler(func(err error) { t.Fatal("must not be called for nil") })
	ReportFailure(nil)
}

func TestRecoverAndReport(t *testing.T) {
	defer resetFailureHandler()

	var got error
	InstallFailureHandler(func(err error) { got = err })

	func() {
		defer RecoverAndReport()
		panic(fmt.Errorf("synthesis exploded"))
	}()

	require.Error(t, got)
	assert.Contains(t, got.Error(), "synthesis exploded")
}

func TestRecoverAndReport_NonErrorPanic(t *testing.T) {
	defer resetFailureHandler()

	var got error
	InstallFailureHandler(func(err error) { got = err })

	func() {
		defer RecoverAndReport()
		panic("plain string")
	}()

	require.Error(t, got)
	assert.Contains(t, got.Error(), "plain string")
}
