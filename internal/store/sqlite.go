package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pomodoro/internal/notification"
	logx "pomodoro/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements Store with sqlx over modernc.org/sqlite.
type SQLiteStore struct {
	db  *sqlx.DB
	log logx.Logger
	now func() time.Time
}

// row mirrors a notification table row. Instants are unix nanoseconds so a
// notification round-trips exactly.
type row struct {
	ID             uint16 `db:"id"`
	Description    string `db:"description"`
	WorkTime       uint16 `db:"work_time"`
	BreakTime      uint16 `db:"break_time"`
	CreatedAt      int64  `db:"created_at"`
	WorkExpiredAt  int64  `db:"work_expired_at"`
	BreakExpiredAt int64  `db:"break_expired_at"`
}

type archivedRow struct {
	row
	Seq        int64 `db:"seq"`
	ArchivedAt int64 `db:"archived_at"`
}

func toRow(n notification.Notification) row {
	return row{
		ID:             n.ID,
		Description:    n.Description,
		WorkTime:       n.WorkMinutes,
		BreakTime:      n.BreakMinutes,
		CreatedAt:      n.CreatedAt.UnixNano(),
		WorkExpiredAt:  n.WorkExpiresAt.UnixNano(),
		BreakExpiredAt: n.BreakExpiresAt.UnixNano(),
	}
}

func (r row) notification() notification.Notification {
	return notification.Notification{
		ID:             r.ID,
		Description:    r.Description,
		WorkMinutes:    r.WorkTime,
		BreakMinutes:   r.BreakTime,
		CreatedAt:      time.Unix(0, r.CreatedAt),
		WorkExpiresAt:  time.Unix(0, r.WorkExpiredAt),
		BreakExpiresAt: time.Unix(0, r.BreakExpiredAt),
	}
}

// Open opens the store at path. An empty path or ":memory:" gives a private
// in-memory database that lives as long as the store.
func Open(path string, log logx.Logger) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = memoryPath
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection: an in-memory database exists per connection, and the
	// pool becomes the single lock around every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if path != memoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db, log: log.With(logx.String("comp", "store")), now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.log.Debug("store opened", logx.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, n notification.Notification) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notification (
			id, description, work_time, break_time,
			created_at, work_expired_at, break_expired_at
		) VALUES (
			:id, :description, :work_time, :break_time,
			:created_at, :work_expired_at, :break_expired_at
		)`, toRow(n))
	if err != nil {
		return fmt.Errorf("inserting notification %d: %w", n.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uint16) (notification.Notification, bool, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT * FROM notification WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Notification{}, false, nil
	}
	if err != nil {
		return notification.Notification{}, false, fmt.Errorf("getting notification %d: %w", id, err)
	}
	return r.notification(), true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]notification.Notification, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM notification ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.notification())
	}
	return out, nil
}

func (s *SQLiteStore) LatestByExpiry(ctx context.Context) (*notification.Notification, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		"SELECT * FROM notification ORDER BY break_expired_at DESC, work_expired_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest notification: %w", err)
	}
	n := r.notification()
	return &n, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id uint16) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notification WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notification"); err != nil {
		return fmt.Errorf("deleting notifications: %w", err)
	}
	return nil
}

const archiveSelect = `
	INSERT INTO archived_notification (
		id, description, work_time, break_time,
		created_at, work_expired_at, break_expired_at, archived_at
	)
	SELECT id, description, work_time, break_time,
		created_at, work_expired_at, break_expired_at, ?
	FROM notification`

func (s *SQLiteStore) Archive(ctx context.Context, id uint16) error {
	if _, err := s.db.ExecContext(ctx, archiveSelect+" WHERE id = ?", s.now().UnixNano(), id); err != nil {
		return fmt.Errorf("archiving notification %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ArchiveAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, archiveSelect+" ORDER BY id", s.now().UnixNano()); err != nil {
		return fmt.Errorf("archiving notifications: %w", err)
	}
	return nil
}

// ListArchive returns archived notifications, newest id first.
func (s *SQLiteStore) ListArchive(ctx context.Context) ([]Archived, error) {
	var rows []archivedRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM archived_notification ORDER BY id DESC, seq DESC"); err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	out := make([]Archived, 0, len(rows))
	for _, r := range rows {
		out = append(out, Archived{Notification: r.notification(), Seq: r.Seq, ArchivedAt: time.Unix(0, r.ArchivedAt)})
	}
	return out, nil
}

func (s *SQLiteStore) ClearArchive(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM archived_notification"); err != nil {
		return fmt.Errorf("clearing archive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearArchiveThrough(ctx context.Context, seq int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM archived_notification WHERE seq <= ?", seq); err != nil {
		return fmt.Errorf("clearing archive through %d: %w", seq, err)
	}
	return nil
}

// Counts reports live and archived row counts.
func (s *SQLiteStore) Counts(ctx context.Context) (live, archived int, err error) {
	if err = s.db.GetContext(ctx, &live, "SELECT COUNT(*) FROM notification"); err != nil {
		return 0, 0, fmt.Errorf("counting notifications: %w", err)
	}
	if err = s.db.GetContext(ctx, &archived, "SELECT COUNT(*) FROM archived_notification"); err != nil {
		return 0, 0, fmt.Errorf("counting archive: %w", err)
	}
	return live, archived, nil
}
