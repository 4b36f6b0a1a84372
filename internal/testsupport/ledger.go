package testsupport

import (
	"testing"

	"msconvert/internal/config"
	"msconvert/internal/runlog"
)

// MustOpenLedger opens the run ledger configured in cfg and closes it when
// the test finishes.
func MustOpenLedger(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(cfg.Paths.RunDB)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
