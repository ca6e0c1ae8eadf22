package transcript

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const recordExt = ".json"

// JSONFileStore keeps one <session>.json file per session in a directory.
type JSONFileStore struct {
	mu     sync.RWMutex
	dir    string
	closed bool
}

var _ Store = (*JSONFileStore)(nil)

func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if dir == "" {
		return nil, errors.New("json transcript store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(ErrPersistence, "create history directory %s: %v", dir, err)
	}
	return &JSONFileStore{dir: dir}, nil
}

func (s *JSONFileStore) Dir() string {
	return s.dir
}

func (s *JSONFileStore) path(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

func (s *JSONFileStore) Save(ctx context.Context, id string, msgs []Message) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
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

	// write next to the target so the rename stays on one filesystem
	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return errors.Wrapf(ErrPersistence, "create temp file for %s: %v", id, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(ErrPersistence, "write %s: %v", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(ErrPersistence, "sync %s: %v", id, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrPersistence, "close %s: %v", id, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Wrapf(ErrPersistence, "chmod %s: %v", id, err)
	}
	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		return errors.Wrapf(ErrPersistence, "rename %s: %v", id, err)
	}

	log.Debug().Str("session", id).Int("messages", len(msgs)).Str("dir", s.dir).Msg("Saved transcript")
	return nil
}

func (s *JSONFileStore) Load(ctx context.Context, id string) ([]Message, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.readLocked(id)
}

func (s *JSONFileStore) readLocked(id string) ([]Message, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, errors.Wrapf(ErrPersistence, "read %s: %v", id, err)
	}
	msgs, err := DecodeRecord(b)
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "decode %s: %v", id, err)
	}
	return msgs, nil
}

func (s *JSONFileStore) LoadAll(ctx context.Context) (map[string][]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	ids, err := s.listLocked()
	if err != nil {
		return nil, err
	}

	ret := make(map[string][]Message, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgs, err := s.readLocked(id)
		if err != nil {
			log.Warn().Err(err).Str("session", id).Msg("Skipping unreadable transcript")
			continue
		}
		ret[id] = msgs
	}
	return ret, nil
}

func (s *JSONFileStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.listLocked()
}

func (s *JSONFileStore) listLocked() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "read history directory %s: %v", s.dir, err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		// temp files end in .tmp, so the extension check skips them too
		if entry.IsDir() || filepath.Ext(name) != recordExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *JSONFileStore) ensureOpen() error {
	if s.closed {
		return errors.New("json transcript store closed")
	}
	return nil
}
