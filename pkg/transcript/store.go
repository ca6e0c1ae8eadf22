// Package transcript persists conversation transcripts, one record per session.
//
// A record is the ordered message log of a session, serialized as an indented
// JSON array of {role, type, content} objects. Two backends are provided: a
// directory of <session>.json files, and a SQLite database holding the same
// JSON payload per row.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	// ErrPersistence wraps every failure to read or write the storage medium.
	ErrPersistence = errors.New("transcript persistence failure")
	ErrNotFound    = errors.New("transcript not found")
	ErrInvalidID   = errors.New("invalid session id")
)

type Store interface {
	// Save replaces the record for id. Readers never observe a partial write.
	Save(ctx context.Context, id string, msgs []Message) error
	Load(ctx context.Context, id string) ([]Message, error)
	// LoadAll returns every readable record. Corrupt records are skipped.
	LoadAll(ctx context.Context) (map[string][]Message, error)
	// List returns the known session ids, sorted.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// EncodeRecord renders msgs the way every backend stores them. Empty types are
// written out as text so that a record always round-trips field for field.
func EncodeRecord(msgs []Message) ([]byte, error) {
	normalized := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.Type == "" {
			m.Type = MessageTypeText
		}
		normalized[i] = m
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRecord(b []byte) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r == 0 {
			return errors.Wrapf(ErrInvalidID, "%q contains a path separator", id)
		}
	}
	return nil
}
