// Package media stores uploaded attachments under a content directory.
package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrUnsupportedType = errors.New("unsupported attachment type")

// DefaultExtensions is the upload allowlist: images, PDF, plain text and
// word-processor documents.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".pdf", ".txt", ".docx"}

var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type Attachment struct {
	// Path is the reference stored in the message content.
	Path      string
	Type      transcript.MessageType
	MediaType string
	Size      int64
}

type Store struct {
	dir        string
	extensions map[string]bool
}

type Option func(*Store)

func WithExtensions(exts ...string) Option {
	return func(s *Store) {
		s.extensions = map[string]bool{}
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions[ext] = true
		}
	}
}

func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("media directory is required")
	}
	s := &Store{dir: dir}
	WithExtensions(DefaultExtensions...)(s)
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create media directory %s", dir)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Allowed reports whether name has an extension on the allowlist.
func (s *Store) Allowed(name string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(name))]
}

// Save copies r into the media directory under the base name of name. An
// existing file with the same name is replaced.
func (s *Store) Save(name string, r io.Reader) (*Attachment, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return nil, errors.Errorf("invalid attachment name %q", name)
	}
	if !s.Allowed(base) {
		return nil, errors.Wrapf(ErrUnsupportedType, "%s", base)
	}

	path := filepath.Join(s.dir, base)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrapf(err, "close %s", path)
	}

	mediaType := MediaTypeFor(base)
	att := &Attachment{
		Path:      path,
		Type:      MessageTypeFor(mediaType),
		MediaType: mediaType,
		Size:      n,
	}
	log.Debug().Str("path", path).Str("media_type", mediaType).Int64("size", n).Msg("Stored attachment")
	return att, nil
}

// SaveFile copies a local file into the media directory.
func (s *Store) SaveFile(src string) (*Attachment, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", src)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return s.Save(filepath.Base(src), f)
}

func MediaTypeFor(name string) string {
	if t, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

func MessageTypeFor(mediaType string) transcript.MessageType {
	if strings.HasPrefix(mediaType, "image/") {
		return transcript.MessageTypeImage
	}
	return transcript.MessageTypeFile
}
