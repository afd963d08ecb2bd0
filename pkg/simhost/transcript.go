package simhost

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Line is one delivered chat line as a recipient saw it.
type Line struct {
	ID         int64
	Time       time.Time
	Sender     uuid.UUID
	SenderName string
	Recipient  uuid.UUID
	World      string
	Text       string
}

// Transcript stores delivered chat lines in SQLite.
type Transcript struct {
	db   *sql.DB
	path string
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	cron   *cron.Cron
}

const transcriptSchema = `
CREATE TABLE IF NOT EXISTS transcript (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          INTEGER NOT NULL,
	sender      TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	recipient   TEXT NOT NULL,
	world       TEXT NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS transcript_ts ON transcript(ts);
CREATE INDEX IF NOT EXISTS transcript_recipient ON transcript(recipient, ts);
`

// OpenTranscript opens the SQLite database at path, sets WAL mode and busy
// timeout, and creates the table.
func OpenTranscript(path string, logger *zap.Logger) (*Transcript, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// Set WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(transcriptSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transcript table: %w", err)
	}
	return &Transcript{db: db, path: path, log: logger.Named("transcript")}, nil
}

// Path returns the filesystem path of the database.
func (t *Transcript) Path() string { return t.path }

// Insert stores one line. A zero Time is stamped with the current time.
func (t *Transcript) Insert(ctx context.Context, l Line) error {
	if l.Time.IsZero() {
		l.Time = time.Now()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO transcript (ts, sender, sender_name, recipient, world, text) VALUES (?, ?, ?, ?, ?, ?)`,
		l.Time.UnixNano(), l.Sender.String(), l.SenderName, l.Recipient.String(), l.World, l.Text)
	if err != nil {
		return fmt.Errorf("transcript insert: %w", err)
	}
	return nil
}

// Recent returns up to limit lines delivered to recipient, oldest first.
// uuid.Nil matches every recipient.
func (t *Transcript) Recent(ctx context.Context, recipient uuid.UUID, limit int) ([]Line, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, ts, sender, sender_name, recipient, world, text FROM transcript`
	args := []any{}
	if recipient != uuid.Nil {
		query += ` WHERE recipient = ?`
		args = append(args, recipient.String())
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript query: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var (
			l                 Line
			ts                int64
			sender, recipient string
		)
		if err := rows.Scan(&l.ID, &ts, &sender, &l.SenderName, &recipient, &l.World, &l.Text); err != nil {
			return nil, fmt.Errorf("transcript scan: %w", err)
		}
		l.Time = time.Unix(0, ts)
		l.Sender, _ = uuid.Parse(sender)
		l.Recipient, _ = uuid.Parse(recipient)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Purge deletes lines older than before and returns how many went.
func (t *Transcript) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM transcript WHERE ts < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("transcript purge: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored lines.
func (t *Transcript) Count(ctx context.Context) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript`).Scan(&n)
	return n, err
}

// Receive implements events.Subscriber. Only chat lines addressed to a
// recipient are stored.
func (t *Transcript) Receive(ev events.Event) {
	if ev.Type != events.EvChat || ev.Player == uuid.Nil {
		return
	}
	name, _ := ev.Data["sender_name"].(string)
	err := t.Insert(context.Background(), Line{
		Sender:     ev.Source,
		SenderName: name,
		Recipient:  ev.Player,
		World:      ev.World,
		Text:       ev.Message.String(),
	})
	if err != nil {
		t.log.Warn("insert failed", zap.Error(err))
	}
}

// Snapshot writes a consistent copy of the database to dest, which must
// not exist yet.
func (t *Transcript) Snapshot(dest string) error {
	if _, err := t.db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("transcript snapshot %s: %w", dest, err)
	}
	return nil
}

// Closed implements events.Subscriber.
func (t *Transcript) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// StartRetention schedules a purge of lines older than retention on the
// cron spec, e.g. "@hourly".
func (t *Transcript) StartRetention(spec string, retention time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		return fmt.Errorf("transcript retention already running")
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() { t.purgeOld(retention) })
	if err != nil {
		return fmt.Errorf("transcript purge spec %q: %w", spec, err)
	}
	c.Start()
	t.cron = c
	t.log.Info("retention scheduled", zap.String("spec", spec), zap.Duration("retention", retention))
	return nil
}

func (t *Transcript) purgeOld(retention time.Duration) {
	n, err := t.Purge(context.Background(), time.Now().Add(-retention))
	if err != nil {
		t.log.Warn("cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		t.log.Info("purged old lines", zap.Int64("count", n))
	}
}

// Close stops the retention job, detaches from the bus and closes the
// database.
func (t *Transcript) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return t.db.Close()
}

var _ events.Subscriber = (*Transcript)(nil)
