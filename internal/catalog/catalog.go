// Package catalog loads a directory of OpenAPI documents and indexes them by
// API name, which is the document title with spaces replaced by underscores.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/moamenhredeen/apicheck/internal/parser"
	"golang.org/x/text/encoding/charmap"
)

// Entry is one loaded document
type Entry struct {
	Name string
	Path string
	Doc  *parser.Document
}

// Catalog maps API names to loaded documents. It is read-only after Scan.
type Catalog struct {
	entries map[string]Entry
}

// Option configures Scan
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for skipped files
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// APIName derives the catalog key from a document title
func APIName(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

// Scan loads every .json, .yaml and .yml file in dir. Files that fail to
// parse are logged and skipped.
func Scan(dir string, opts ...Option) (*Catalog, error) {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read specs directory: %w", err)
	}

	c := &Catalog{entries: make(map[string]Entry)}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}

		path := filepath.Join(dir, de.Name())
		doc, err := load(path, o.logger)
		if err != nil {
			o.logger.Error("failed to load spec, skipped", "file", path, "error", err)
			continue
		}

		name := APIName(doc.Title())
		if prev, ok := c.entries[name]; ok {
			o.logger.Warn("duplicate api name, later file wins", "api", name, "previous", prev.Path, "file", path)
		}
		c.entries[name] = Entry{Name: name, Path: path, Doc: doc}
		o.logger.Debug("spec loaded", "api", name, "file", path, "version", doc.Version())
	}

	return c, nil
}

// load parses one file, decoding it as ISO-8859-1 when it is not UTF-8
func load(path string, logger *slog.Logger) (*parser.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}

	if !utf8.Valid(data) {
		logger.Warn("spec is not valid UTF-8, decoding as ISO-8859-1", "file", path)
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ISO-8859-1: %w", err)
		}
	}

	return parser.Parse(data, parser.WithLogger(logger.With("file", path)))
}

// Lookup returns the entry registered for apiName
func (c *Catalog) Lookup(apiName string) (Entry, bool) {
	e, ok := c.entries[apiName]
	return e, ok
}

// Names returns the API names in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded documents
func (c *Catalog) Len() int {
	return len(c.entries)
}
