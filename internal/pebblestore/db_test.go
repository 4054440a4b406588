package pebblestore

import (
	"context"
	"testing"
	"time"
)

type testMetrics struct {
	wrote int
	read  int
}

func (m *testMetrics) ObserveWrite(d time.Duration, bytes int) { m.wrote += bytes }
func (m *testMetrics) ObserveRead(d time.Duration, bytes int)  { m.read += bytes }

func newTestDB(t *testing.T, dir string) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error without DataDir")
	}
}

func TestGetMissing(t *testing.T) {
	db, _ := newTestDB(t, t.TempDir())

	v, ok, err := db.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false, got value %q", v)
	}
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t, t.TempDir())
	ctx := context.Background()

	if err := db.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := db.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("get: %q %v %v", got, ok, err)
	}
	if got != "v1" {
		t.Fatalf("got %q want %q", got, "v1")
	}
	if metrics.read == 0 || metrics.wrote == 0 {
		t.Fatalf("expected metrics to record bytes, got read=%d wrote=%d", metrics.read, metrics.wrote)
	}
}

func TestReopenKeepsValue(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Set(ctx, "q", "durable"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, _ := newTestDB(t, dir)
	got, ok, err := db2.Get(ctx, "q")
	if err != nil || !ok || got != "durable" {
		t.Fatalf("get after reopen: %q %v %v", got, ok, err)
	}
}

func TestKeys(t *testing.T) {
	db, _ := newTestDB(t, t.TempDir())
	ctx := context.Background()

	for _, k := range []string{"b", "a"} {
		if err := db.Set(ctx, k, "x"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	keys, err := db.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestClosed(t *testing.T) {
	db, err := Open(Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := db.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
	if err := db.Set(context.Background(), "k", "v"); err == nil {
		t.Fatalf("expected set to fail after close")
	}
}

func TestParseFsyncMode(t *testing.T) {
	cases := map[string]FsyncMode{
		"":         FsyncModeUnspecified,
		"always":   FsyncModeAlways,
		"interval": FsyncModeInterval,
		"never":    FsyncModeNever,
	}
	for in, want := range cases {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
