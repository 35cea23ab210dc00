package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/timekeeper/internal/storage"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Sessions().Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := storage.SessionRecord{DailyUsageMillis: 1000, DailyGoalMillis: 3000000, LastUpdatedDate: "2024/01/01"}
	second := storage.SessionRecord{DailyUsageMillis: 2000, DailyGoalMillis: 3000000, LastUpdatedDate: "2024/01/01"}

	if err := store.Sessions().Put(ctx, first); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.Sessions().Put(ctx, second); err != nil {
		t.Fatalf("replace session: %v", err)
	}

	got, err := store.Sessions().Get(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if *got != second {
		t.Fatalf("expected %+v, got %+v", second, *got)
	}
}

func TestHistoryStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	history := store.History()

	for day, ms := range map[string]int64{"2024/01/01": 10, "2024/01/02": 20} {
		if err := history.Put(ctx, day, ms); err != nil {
			t.Fatalf("put %s: %v", day, err)
		}
	}
	if err := history.Put(ctx, "2024/01/01", 15); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	all, err := history.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all["2024/01/01"] != 15 || all["2024/01/02"] != 20 {
		t.Fatalf("unexpected history: %v", all)
	}

	if _, err := history.Get(ctx, "2024/02/01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	next := storage.SessionRecord{DailyGoalMillis: 7200000, LastUpdatedDate: "2024/01/02"}

	if err := store.Finalize(ctx, "2024/01/01", 3600000, next); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	v, err := store.History().Get(ctx, "2024/01/01")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if v != 3600000 {
		t.Fatalf("expected 3600000, got %d", v)
	}

	got, err := store.Sessions().Get(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if *got != next {
		t.Fatalf("expected %+v, got %+v", next, *got)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timekeeper.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.History().Put(context.Background(), "2024/01/01", 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()

	var version int
	if err := store.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version); err != nil {
		t.Fatalf("query version: %v", err)
	}
	if version != len(getMigrations()) {
		t.Fatalf("expected version %d, got %d", len(getMigrations()), version)
	}

	if v, err := store.History().Get(context.Background(), "2024/01/01"); err != nil || v != 1 {
		t.Fatalf("expected history to survive reopen, got %d, %v", v, err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "timekeeper.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
