// Package store keeps live and archived notifications in an embedded
// SQLite database.
package store

import (
	"context"
	"time"

	"pomodoro/internal/notification"
)

// Store is the record contract the scheduler and dispatcher depend on.
type Store interface {
	Insert(ctx context.Context, n notification.Notification) error
	// Get returns ok=false when no live row has the id.
	Get(ctx context.Context, id uint16) (n notification.Notification, ok bool, err error)
	List(ctx context.Context) ([]notification.Notification, error)
	// LatestByExpiry returns the live row that ends last, or nil.
	LatestByExpiry(ctx context.Context) (*notification.Notification, error)
	Delete(ctx context.Context, id uint16) error
	DeleteAll(ctx context.Context) error
	Archive(ctx context.Context, id uint16) error
	ArchiveAll(ctx context.Context) error
	ListArchive(ctx context.Context) ([]Archived, error)
	ClearArchive(ctx context.Context) error
	// ClearArchiveThrough removes archived rows with Seq <= seq, leaving
	// rows archived after a ListArchive snapshot in place.
	ClearArchiveThrough(ctx context.Context, seq int64) error
	Close() error
}

// Archived is a completed or deleted notification.
type Archived struct {
	notification.Notification
	// Seq orders archive insertions; it only grows.
	Seq        int64
	ArchivedAt time.Time
}

// MaxSeq returns the largest Seq in arch, or 0 when it is empty.
func MaxSeq(arch []Archived) int64 {
	var m int64
	for _, a := range arch {
		m = max(m, a.Seq)
	}
	return m
}
