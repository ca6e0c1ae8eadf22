// Package ingest turns local documents into knowledge base entries: files are
// read, reduced to plain text, split into overlapping chunks, embedded and
// written to the vector store.
package ingest

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var DefaultExtensions = []string{".txt", ".md", ".html", ".htm"}

// Document is one source file reduced to text.
type Document struct {
	Source string
	Text   string
}

// CollectFiles expands paths into the files to ingest. Directories are walked
// recursively; hidden entries and files with other extensions are skipped.
// Files named explicitly are kept only if their extension is supported.
func CollectFiles(paths []string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := map[string]bool{}
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	seen := map[string]bool{}
	ret := []string{}
	add := func(p string) {
		if !allowed[strings.ToLower(filepath.Ext(p))] || seen[p] {
			return
		}
		seen[p] = true
		ret = append(ret, p)
	}

	for _, root := range paths {
		fi, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", root)
		}
		if !fi.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", root)
		}
	}

	sort.Strings(ret)
	return ret, nil
}

func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = HTMLText(f)
	default:
		var b []byte
		b, err = io.ReadAll(f)
		text = string(b)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	log.Debug().Str("source", path).Int("runes", len([]rune(text))).Msg("Loaded document")
	return &Document{Source: path, Text: text}, nil
}

// HTMLText extracts the visible text of an HTML page, one block per line.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, head").Remove()

	lines := []string{}
	doc.Find("title, h1, h2, h3, h4, h5, h6, p, li, pre, td, th, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, pre, td, th, blockquote").Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		if t := strings.Join(strings.Fields(doc.Text()), " "); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n"), nil
}
