package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// testModeEnv makes both binaries return before dialing Postgres or Redis. The testing
// package sets it for any test binary that imports it.
const testModeEnv = "LINEN_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether LINEN_TEST_MODE was truthy when first read.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads LINEN_TEST_MODE and returns the new value. Anything
// strconv.ParseBool rejects counts as off.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	on = on && err == nil
	testMode.Store(&on)
	return on
}
