package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "translations.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustGet(t *testing.T, store *Store, model, text string) (string, bool) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), model, text)
	if err != nil {
		t.Fatalf("Get(%q): %v", text, err)
	}
	return got, ok
}

func mustPut(t *testing.T, store *Store, model, text, translation string) {
	t.Helper()
	if err := store.Put(context.Background(), model, text, translation); err != nil {
		t.Fatalf("Put(%q): %v", text, err)
	}
}

func mustStats(t *testing.T, store *Store) Stats {
	t.Helper()
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return stats
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, ok := mustGet(t, store, "gpt-3.5-turbo", "こんにちは"); ok {
		t.Fatal("expected miss on empty cache")
	}

	mustPut(t, store, "gpt-3.5-turbo", "こんにちは", "Hello")
	got, ok := mustGet(t, store, "gpt-3.5-turbo", "  こんにちは ")
	if !ok {
		t.Fatal("lookups should ignore surrounding whitespace")
	}
	if got != "Hello" {
		t.Fatalf("got %q, want Hello", got)
	}

	if _, ok := mustGet(t, store, "gpt-4o", "こんにちは"); ok {
		t.Fatal("entries are scoped to the model")
	}
}

func TestPutReplacesTranslation(t *testing.T) {
	store := openTestStore(t)

	mustPut(t, store, "m", "犬", "dog")
	mustPut(t, store, "m", "犬", "Dog")
	if got, ok := mustGet(t, store, "m", "犬"); !ok || got != "Dog" {
		t.Fatalf("got %q (hit=%v), want Dog", got, ok)
	}
	if stats := mustStats(t, store); stats.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.Entries)
	}
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	store.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	empty := mustStats(t, store)
	if empty.Entries != 0 || !empty.Oldest.IsZero() {
		t.Fatalf("unexpected empty stats %+v", empty)
	}

	mustPut(t, store, "m", "一", "one")
	store.now = func() time.Time { return time.Unix(1_700_000_100, 0) }
	mustPut(t, store, "m", "二", "two")
	for range 3 {
		mustGet(t, store, "m", "一")
	}

	stats := mustStats(t, store)
	if stats.Entries != 2 || stats.Hits != 3 {
		t.Fatalf("expected 2 entries and 3 hits, got %+v", stats)
	}
	if stats.Oldest.Unix() != 1_700_000_000 || stats.Newest.Unix() != 1_700_000_100 {
		t.Fatalf("unexpected timestamps %v / %v", stats.Oldest, stats.Newest)
	}
	if stats.SizeBytes <= 0 {
		t.Fatalf("expected positive size, got %d", stats.SizeBytes)
	}
	if stats.Path != store.Path() {
		t.Fatalf("stats path %q, want %q", stats.Path, store.Path())
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := mustGet(t, store, "m", "一"); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "translations.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustPut(t, store, "m", "猫", "cat")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got, ok := mustGet(t, reopened, "m", "猫"); !ok || got != "cat" {
		t.Fatalf("got %q (hit=%v), want cat", got, ok)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "translations.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = ?", schemaVersion+1); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	if _, err := Open(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

type countingTranslator struct {
	calls atomic.Int32
	err   error
}

func (c *countingTranslator) Translate(_ context.Context, text string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "EN:" + text, nil
}

func TestCachedTranslatorSkipsRemoteOnHit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	remote := &countingTranslator{}
	var hits atomic.Int32
	translator := NewTranslator(store, "m", remote, nil, func() { hits.Add(1) })

	first, err := translator.Translate(ctx, "ありがとう")
	if err != nil {
		t.Fatalf("first Translate: %v", err)
	}
	second, err := translator.Translate(ctx, "ありがとう")
	if err != nil {
		t.Fatalf("second Translate: %v", err)
	}

	if first != "EN:ありがとう" || second != first {
		t.Fatalf("unexpected translations %q / %q", first, second)
	}
	if calls := remote.calls.Load(); calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", calls)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 cache hit, got %d", got)
	}
}

func TestCachedTranslatorDoesNotStoreFailures(t *testing.T) {
	store := openTestStore(t)
	remote := &countingTranslator{err: errors.New("boom")}
	translator := NewTranslator(store, "m", remote, nil, nil)

	if _, err := translator.Translate(context.Background(), "失敗"); err == nil {
		t.Fatal("expected remote error")
	}
	if _, ok := mustGet(t, store, "m", "失敗"); ok {
		t.Fatal("failed translations must not be cached")
	}
}

func TestCachedTranslatorConcurrentWorkers(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	translator := NewTranslator(store, "m", &countingTranslator{}, nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := translator.Translate(ctx, []string{"一", "二", "三", "四"}[i%4])
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Translate: %v", err)
		}
	}

	if stats := mustStats(t, store); stats.Entries != 4 {
		t.Fatalf("expected 4 entries, got %d", stats.Entries)
	}
}

func TestKeyNormalizesText(t *testing.T) {
	if Key("m", "\u304c") != Key("m", "\u304b\u3099") {
		t.Fatal("composed and decomposed kana should share a key")
	}
	if Key("a", "x") == Key("b", "x") {
		t.Fatal("keys should differ by model")
	}
}
