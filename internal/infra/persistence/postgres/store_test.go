package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"platecore/pkg/domain"
)

// Integration test; requires a reachable Postgres. Set
// PLATECORE_POSTGRES_TEST_DSN to run.
func TestSnapshotRoundTrip(t *testing.T) {
	dsn := os.Getenv("PLATECORE_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skipf("PLATECORE_POSTGRES_TEST_DSN not set; skipping postgres integration test")
	}
	ctx := context.Background()

	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.DB().ExecContext(ctx, `DELETE FROM state`)
		_ = store.Close()
	})

	rec, err := domain.NewAnnotationRecord("EB1", 25, domain.MicrobeBacteria, domain.GrowthPositive, domain.SourceManual)
	if err != nil {
		t.Fatalf("NewAnnotationRecord: %v", err)
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, ok := reopened.ByWell("EB1", 25)
	if !ok || got.GrowthLevel != domain.GrowthPositive {
		t.Fatalf("ByWell = (%+v, %v)", got, ok)
	}
}

func TestNewStoreUsesOpenHook(t *testing.T) {
	openMu.Lock()
	orig := sqlOpen
	var gotDriver, gotDSN string
	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return nil, errors.New("connection refused")
	}
	openMu.Unlock()
	t.Cleanup(func() {
		openMu.Lock()
		sqlOpen = orig
		openMu.Unlock()
	})

	_, err := NewStore(context.Background(), "")
	if err == nil {
		t.Fatal("expected open failure to propagate")
	}
	if !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("error not wrapped: %v", err)
	}
	if gotDriver != defaultDriver {
		t.Fatalf("driver = %q, want %q", gotDriver, defaultDriver)
	}
	if gotDSN != defaultDSN {
		t.Fatalf("dsn = %q, want the default fallback", gotDSN)
	}
}
