package transcript

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const sqliteTranscriptsSchemaV1 = `
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    payload_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps one row per session holding the same JSON payload the file
// store writes, so records can move between backends unchanged.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	now    func() time.Time
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

type transcriptRow struct {
	ID          string `db:"id"`
	PayloadJSON string `db:"payload_json"`
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "open %s: %v", dsn, err)
	}
	// a single connection keeps :memory: databases coherent
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(sqliteTranscriptsSchemaV1); err != nil {
		return errors.Wrapf(ErrPersistence, "migrate: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, msgs []Message) error {
	if err := validateID(id); err != nil {
		return err
	}
	b, err := EncodeRecord(msgs)
	if err != nil {
		return errors.Wrapf(ErrPersistence, "encode %s: %v", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO transcripts (id, payload_json, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET payload_json = excluded.payload_json, updated_at_ms = excluded.updated_at_ms`,
		id, string(b), s.now().UnixMilli())
	if err != nil {
		return errors.Wrapf(ErrPersistence, "save %s: %v", id, err)
	}

	log.Debug().Str("session", id).Int("messages", len(msgs)).Msg("Saved transcript to sqlite")
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) ([]Message, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.GetContext(ctx, &payload, `SELECT payload_json FROM transcripts WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	case err != nil:
		return nil, errors.Wrapf(ErrPersistence, "load %s: %v", id, err)
	}

	msgs, err := DecodeRecord([]byte(payload))
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "decode %s: %v", id, err)
	}
	return msgs, nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (map[string][]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var rows []transcriptRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, payload_json FROM transcripts ORDER BY id`); err != nil {
		return nil, errors.Wrapf(ErrPersistence, "load all: %v", err)
	}

	ret := make(map[string][]Message, len(rows))
	for _, row := range rows {
		msgs, err := DecodeRecord([]byte(row.PayloadJSON))
		if err != nil {
			log.Warn().Err(err).Str("session", row.ID).Msg("Skipping corrupt transcript row")
			continue
		}
		ret[row.ID] = msgs
	}
	return ret, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM transcripts ORDER BY id`); err != nil {
		return nil, errors.Wrapf(ErrPersistence, "list: %v", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) ensureOpen() error {
	if s.closed {
		return errors.New("sqlite transcript store closed")
	}
	return nil
}
