package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the binaries before they dial Postgres or
// Redis, so smoke tests can exercise main without infrastructure.
const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether MERIDIAN_TEST_MODE is set to a true value.
// The environment is read once and cached.
func InTestMode() bool {
	testModeOnce.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment, for tests that flip the flag.
func RefreshTestMode() {
	loadTestMode()
}
