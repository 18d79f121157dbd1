package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pomodoro/internal/notification"
	logx "pomodoro/pkg/logx"
)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("", logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustNew(t *testing.T, id, work, brk uint16, at time.Time) notification.Notification {
	t.Helper()
	n, err := notification.New(id, work, brk, at)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return n
}

var base = time.Date(2026, 1, 2, 3, 4, 5, 6789, time.UTC)

func TestInsertGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	n := mustNew(t, 1, 25, 5, base)
	if err := s.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, ok, err := s.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != n.ID || got.WorkMinutes != 25 || got.BreakMinutes != 5 || got.Description != notification.Description {
		t.Fatalf("got %+v", got)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) || !got.BreakExpiresAt.Equal(n.BreakExpiresAt) || !got.StartAt().Equal(base) {
		t.Fatalf("instants did not round-trip: %+v", got)
	}
	if _, ok, err := s.Get(ctx, 2); ok || err != nil {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
	if err := s.Insert(ctx, n); err == nil {
		t.Fatalf("duplicate insert should fail")
	}
}

func TestLatestByExpiry(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	if latest, err := s.LatestByExpiry(ctx); err != nil || latest != nil {
		t.Fatalf("empty store: %v %v", latest, err)
	}
	for _, n := range []notification.Notification{
		mustNew(t, 1, 25, 5, base),
		mustNew(t, 2, 60, 0, base),
		mustNew(t, 3, 10, 5, base),
	} {
		if err := s.Insert(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	latest, err := s.LatestByExpiry(ctx)
	if err != nil || latest == nil {
		t.Fatalf("latest: %v %v", latest, err)
	}
	if latest.ID != 2 {
		t.Fatalf("latest id = %d, want 2", latest.ID)
	}
}

func TestArchiveThenDelete(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	for id := uint16(1); id <= 3; id++ {
		if err := s.Insert(ctx, mustNew(t, id, 25, 5, base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.Archive(ctx, 2); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	live, archived, err := s.Counts(ctx)
	if err != nil || live != 2 || archived != 1 {
		t.Fatalf("counts live=%d archived=%d err=%v", live, archived, err)
	}

	if err := s.ArchiveAll(ctx); err != nil {
		t.Fatalf("archive all: %v", err)
	}
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	rows, err := s.List(ctx)
	if err != nil || len(rows) != 0 {
		t.Fatalf("live rows after delete all: %v %v", rows, err)
	}
	hist, err := s.ListArchive(ctx)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(hist) != 3 || hist[0].ID != 3 || hist[1].ID != 2 || hist[2].ID != 1 {
		t.Fatalf("archive order = %+v", hist)
	}
	if hist[0].ArchivedAt.IsZero() {
		t.Fatalf("archived_at not set")
	}

	if err := s.ClearArchive(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if hist, _ := s.ListArchive(ctx); len(hist) != 0 {
		t.Fatalf("archive not cleared: %v", hist)
	}
}

func TestClearArchiveThroughKeepsLaterRows(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	for id := uint16(1); id <= 2; id++ {
		if err := s.Insert(ctx, mustNew(t, id, 25, 5, base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.Archive(ctx, 1); err != nil {
		t.Fatalf("archive: %v", err)
	}
	shown, err := s.ListArchive(ctx)
	if err != nil || len(shown) != 1 {
		t.Fatalf("list archive: %v %v", shown, err)
	}
	if err := s.Archive(ctx, 2); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.ClearArchiveThrough(ctx, MaxSeq(shown)); err != nil {
		t.Fatalf("clear through: %v", err)
	}
	left, err := s.ListArchive(ctx)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(left) != 1 || left[0].ID != 2 {
		t.Fatalf("remaining archive = %+v, want only id 2", left)
	}
	if MaxSeq(nil) != 0 {
		t.Fatalf("MaxSeq(nil) = %d", MaxSeq(nil))
	}
}

func TestArchiveMissingIDIsNoop(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	if err := s.Archive(ctx, 9); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, archived, _ := s.Counts(ctx); archived != 0 {
		t.Fatalf("archived = %d", archived)
	}
}

func TestOpenFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "pomodoro.db")
	s, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Insert(context.Background(), mustNew(t, 1, 1, 1, base)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = s.Close()

	s, err = Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, ok, _ := s.Get(context.Background(), 1); !ok {
		t.Fatalf("file store lost row")
	}
}
