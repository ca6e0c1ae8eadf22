package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
	ExportText ExportFormat = "text"
)

type exportedSession struct {
	Session  string    `json:"session" yaml:"session"`
	Messages []Message `json:"messages" yaml:"messages"`
}

func Export(w io.Writer, id string, msgs []Message, format ExportFormat) error {
	switch ExportFormat(strings.ToLower(string(format))) {
	case ExportJSON, "":
		b, err := EncodeRecord(msgs)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(exportedSession{Session: id, Messages: msgs}); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case ExportText:
		for _, m := range msgs {
			if _, err := fmt.Fprintln(w, m.String()); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unknown export format %q", format)
	}
}

// Schema describes a stored record: an array of messages.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	item := r.Reflect(&Message{})
	item.Version = ""
	schema := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "transcript",
		Description: "Ordered message log of one conversation session",
		Type:        "array",
		Items:       item,
	}
	return json.MarshalIndent(schema, "", "  ")
}
