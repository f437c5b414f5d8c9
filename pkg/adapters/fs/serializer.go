package fs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notesync/pkg/core"
)

// BodyField is the field stored as the document body instead of metadata.
const BodyField = "content"

// Serializer defines how documents of one file format are read and written.
type Serializer interface {
	// Parse reads the fields of one document.
	Parse(r io.Reader) (core.Fields, error)
	// Serialize converts fields to the file contents.
	Serialize(fields core.Fields) ([]byte, error)
}

// DefaultSerializers returns the serializers by file extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".md":   MarkdownSerializer{},
		".json": JSONSerializer{},
	}
}

// --- Markdown Serializer ---

// MarkdownSerializer stores metadata as YAML frontmatter and the body field
// as Markdown.
type MarkdownSerializer struct{}

func (MarkdownSerializer) Parse(r io.Reader) (core.Fields, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	fields := make(core.Fields)
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		fields[BodyField] = string(data)
		return fields, nil
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("\n---"), 2)
	if len(parts) == 1 {
		return nil, errors.New("frontmatter started but no closing delimiter found")
	}

	if err := yaml.Unmarshal(parts[0], &fields); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if fields == nil {
		fields = make(core.Fields)
	}

	body := strings.TrimPrefix(string(parts[1]), "\r")
	body = strings.TrimPrefix(body, "\n")
	fields[BodyField] = body
	return fields, nil
}

func (MarkdownSerializer) Serialize(fields core.Fields) ([]byte, error) {
	meta := encodable(fields)
	body, _ := meta[BodyField].(string)
	delete(meta, BodyField)

	var buf bytes.Buffer
	if len(meta) > 0 {
		buf.WriteString("---\n")
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(meta); err != nil {
			return nil, err
		}
		encoder.Close()
		buf.WriteString("---\n")
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// --- JSON Serializer ---

// JSONSerializer stores every field in one JSON object.
type JSONSerializer struct{}

func (JSONSerializer) Parse(r io.Reader) (core.Fields, error) {
	var fields core.Fields
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if fields == nil {
		fields = make(core.Fields)
	}
	return fields, nil
}

func (JSONSerializer) Serialize(fields core.Fields) ([]byte, error) {
	return json.MarshalIndent(encodable(fields), "", "  ")
}

// encodable copies fields, writing times as RFC 3339 strings so every format
// reads them back the same way.
func encodable(fields core.Fields) core.Fields {
	out := make(core.Fields, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if t == nil {
				out[k] = nil
			} else {
				out[k] = t.UTC().Format(time.RFC3339Nano)
			}
		default:
			out[k] = v
		}
	}
	return out
}
