package origincache

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soundatlas/soundatlas/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	db.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, 30*24*time.Hour, logger)
}

func strptr(s string) *string { return &s }

func TestGetAbsent(t *testing.T) {
	s := newTestService(t)
	entry, err := s.Get(context.Background(), "Nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Errorf("expected absent, got %+v", entry)
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "Daft Punk", strptr("FR"), strptr("mbid-1"), strptr("Daft Punk")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Lookup is case-insensitive on the query key.
	entry, err := s.Get(ctx, "DAFT PUNK")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected hit")
	}
	if entry.QueryKey != "daft punk" {
		t.Errorf("expected normalized key, got %q", entry.QueryKey)
	}
	if entry.CountryCode == nil || *entry.CountryCode != "FR" {
		t.Errorf("unexpected country: %v", entry.CountryCode)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for range 2 {
		if err := s.Upsert(ctx, "Radiohead", strptr("GB"), strptr("mbid-rh"), strptr("Radiohead")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	entry, err := s.Get(ctx, "radiohead")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected hit")
	}
	if *entry.CountryCode != "GB" || *entry.MBID != "mbid-rh" || *entry.NameFound != "Radiohead" {
		t.Errorf("values changed after repeated upsert: %+v", entry)
	}
}

func TestNegativeRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "Obscure Act", nil, nil, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entry, err := s.Get(ctx, "obscure act")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Fatal("negative result must be a fresh hit, not absent")
	}
	if !entry.Negative() {
		t.Error("expected negative entry")
	}
}

func TestStalenessBoundary(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "Old Artist", strptr("US"), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "Fresh Artist", strptr("SE"), nil, nil); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	// Just past the window: treated as absent.
	setLastFetched(t, s, "old artist", base.Add(-s.validity-time.Millisecond))
	// Just inside the window: still fresh.
	setLastFetched(t, s, "fresh artist", base.Add(-s.validity+time.Millisecond))
	s.now = func() time.Time { return base }

	entry, err := s.Get(ctx, "Old Artist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Error("stale entry must be treated as absent")
	}

	entry, err = s.Get(ctx, "Fresh Artist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Error("entry just inside the window must be fresh")
	}

	batch := s.GetBatch(ctx, []string{"Old Artist", "Fresh Artist"})
	if _, ok := batch["old artist"]; ok {
		t.Error("stale entry must be omitted from batch results")
	}
	if _, ok := batch["fresh artist"]; !ok {
		t.Error("fresh entry missing from batch results")
	}
}

func TestGetBatchMissSetCompleteness(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "Hit One", strptr("US"), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "Hit Two", nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	input := []string{"Hit One", "Hit Two", "Miss One", "Miss Two"}
	batch := s.GetBatch(ctx, input)

	if len(batch) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(batch))
	}
	misses := 0
	for _, name := range input {
		if _, ok := batch[Key(name)]; !ok {
			misses++
		}
	}
	if misses != 2 {
		t.Errorf("expected exactly 2 misses by set difference, got %d", misses)
	}
}

func TestGetBatchEmptyInput(t *testing.T) {
	s := newTestService(t)
	batch := s.GetBatch(context.Background(), nil)
	if len(batch) != 0 {
		t.Errorf("expected empty map, got %v", batch)
	}
}

func TestDeleteNegatives(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"unknown a", "unknown b", "unknown c"} {
		if err := s.Upsert(ctx, name, nil, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Upsert(ctx, "known a", strptr("DE"), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "known b", strptr("JP"), nil, nil); err != nil {
		t.Fatal(err)
	}

	count, err := s.DeleteNegatives(ctx)
	if err != nil {
		t.Fatalf("delete negatives: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 deleted, got %d", count)
	}

	entry, err := s.Get(ctx, "unknown a")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Error("deleted negative must be absent")
	}

	entry, err = s.Get(ctx, "known a")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Error("non-negative entry must survive")
	}
}

// setLastFetched rewrites an entry's timestamp directly for staleness tests.
func setLastFetched(t *testing.T, s *Service, key string, ts time.Time) {
	t.Helper()
	_, err := s.db.Exec(
		`UPDATE artist_origin_cache SET last_fetched = ? WHERE artist_name_query = ?`,
		ts.UnixMilli(), key)
	if err != nil {
		t.Fatalf("setting last_fetched: %v", err)
	}
}
