package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/roach88/streamql/internal/stream"
)

// Format is the encoding of a file source.
type Format string

const (
	// FormatJSONLines is one JSON value per line (.jsonl, .ndjson, .json).
	FormatJSONLines Format = "jsonl"
	// FormatYAML is a YAML list of rows, or a stream of YAML documents
	// (.yaml, .yml).
	FormatYAML Format = "yaml"
)

// FormatOf infers the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONLines, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot infer format of %q: use .jsonl or .yaml", path)
	}
}

// File streams the rows of a file. The file is reopened for every
// subscription.
type File struct {
	path   string
	format Format
	rate   float64
	burst  int
}

// FileOption configures a File.
type FileOption func(*File)

// WithRate paces the file at perSecond rows per second, to replay recorded
// telemetry at roughly live speed. perSecond <= 0 disables pacing.
func WithRate(perSecond float64) FileOption {
	return func(f *File) {
		f.rate = perSecond
	}
}

// WithFormat overrides the format inferred from the extension.
func WithFormat(format Format) FileOption {
	return func(f *File) {
		f.format = format
	}
}

// NewFile creates a file source for path.
func NewFile(path string, opts ...FileOption) (*File, error) {
	f := &File{path: path, burst: 1}
	for _, opt := range opts {
		opt(f)
	}
	if f.format == "" {
		format, err := FormatOf(path)
		if err != nil {
			return nil, err
		}
		f.format = format
	}
	return f, nil
}

// Rows returns the stream of the file's rows.
func (f *File) Rows() stream.Stream[any] {
	return func(ctx context.Context, emit func(any) error) error {
		file, err := os.Open(f.path)
		if err != nil {
			return fmt.Errorf("open source file: %w", err)
		}
		defer file.Close()

		if f.rate > 0 {
			limiter := rate.NewLimiter(rate.Limit(f.rate), f.burst)
			next := emit
			emit = func(row any) error {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				return next(row)
			}
		}

		switch f.format {
		case FormatJSONLines:
			err = decodeJSONLines(file, emit)
		case FormatYAML:
			err = decodeYAML(file, emit)
		default:
			err = fmt.Errorf("unknown format %q", f.format)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
		return nil
	}
}

func decodeJSONLines(r io.Reader, emit func(any) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	for n := 1; ; n++ {
		var v any
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("row %d: %w", n, err)
		}
		if err := emit(normalizeJSON(v)); err != nil {
			return err
		}
	}
}

// normalizeJSON turns json.Number into int64 when integral, else float64.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeJSON(e)
		}
		return t
	default:
		return v
	}
}

// decodeYAML emits the elements of every list document and every other
// document as a single row.
func decodeYAML(r io.Reader, emit func(any) error) error {
	dec := yaml.NewDecoder(r)
	for n := 1; ; n++ {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("document %d: %w", n, err)
		}
		rows, ok := doc.([]any)
		if !ok {
			rows = []any{doc}
		}
		for _, row := range rows {
			if err := emit(row); err != nil {
				return err
			}
		}
	}
}

// Files is a Provider of file sources by name.
type Files map[string]*File

// Source implements Provider.
func (fs Files) Source(name string) (stream.Stream[any], bool) {
	f, ok := fs[name]
	if !ok {
		return nil, false
	}
	return f.Rows(), true
}

// ParseSpec parses a `name=path` source flag.
func ParseSpec(spec string) (name, path string, err error) {
	name, path, ok := strings.Cut(spec, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return "", "", fmt.Errorf("invalid source %q: want name=path", spec)
	}
	return name, path, nil
}
