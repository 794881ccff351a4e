package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/pb33f/libopenapi"
	v2high "github.com/pb33f/libopenapi/datamodel/high/v2"
	v3high "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/index"
	"go.yaml.in/yaml/v4"
)

// MaxDepth bounds both mock generation recursion and $ref hops
const MaxDepth = 10

// Document is a loaded OpenAPI or Swagger document. It is read-only after
// Parse returns and may be shared between goroutines.
type Document struct {
	root      *yaml.Node
	index     *index.SpecIndex
	v3        *v3high.Document
	v2        *v2high.Swagger
	templates []string
	version   string
	title     string
	basePath  string
	hasBase   bool
	logger    *slog.Logger
}

// Option configures a Document at parse time
type Option func(*Document)

// WithLogger sets the logger used for resolution warnings
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// ParseFile parses an OpenAPI specification file
func ParseFile(filePath string, opts ...Option) (*Document, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return Parse(specBytes, opts...)
}

// Parse parses an OpenAPI 3.x or Swagger 2.0 document in JSON or YAML form
func Parse(specBytes []byte, opts ...Option) (*Document, error) {
	d := &Document{logger: logging.Nop()}
	for _, opt := range opts {
		opt(d)
	}

	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	d.version = document.GetVersion()
	d.root = deref(document.GetSpecInfo().RootNode)
	if d.root == nil || d.root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to decode OpenAPI document: root is not an object")
	}

	if strings.HasPrefix(d.version, "2") {
		model, errs := document.BuildV2Model()
		if model == nil {
			return nil, fmt.Errorf("failed to build v2 model: %v", errs)
		}
		if errs != nil {
			d.logger.Warn("swagger model built with errors", "errors", errs)
		}
		d.v2 = &model.Model
		d.index = model.Index
		if d.v2.Info != nil {
			d.title = d.v2.Info.Title
		}
		if Get(d.root, "basePath") != nil {
			d.basePath = d.v2.BasePath
			d.hasBase = true
		}
		if d.v2.Paths != nil {
			for template := range d.v2.Paths.PathItems.KeysFromOldest() {
				d.templates = append(d.templates, template)
			}
		}
	} else {
		model, errs := document.BuildV3Model()
		if model == nil {
			return nil, fmt.Errorf("failed to build v3 model: %v", errs)
		}
		if errs != nil {
			d.logger.Warn("openapi model built with errors", "errors", errs)
		}
		d.v3 = &model.Model
		d.index = model.Index
		if d.v3.Info != nil {
			d.title = d.v3.Info.Title
		}
		if len(d.v3.Servers) > 0 && d.v3.Servers[0] != nil {
			d.basePath = serverPath(d.v3.Servers[0].URL)
			d.hasBase = true
		}
		if d.v3.Paths != nil {
			for template := range d.v3.Paths.PathItems.KeysFromOldest() {
				d.templates = append(d.templates, template)
			}
		}
	}

	if len(d.templates) == 0 {
		d.logger.Warn("document declares no paths", "title", d.title)
	}

	return d, nil
}

// serverPath returns the path component of a server URL. Server URLs may
// carry {variables} in the host, which net/url rejects, so fall back to
// slicing after the authority.
func serverPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
		j := strings.Index(rest, "/")
		if j < 0 {
			return ""
		}
		rest = rest[j:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Title returns info.title
func (d *Document) Title() string {
	return d.title
}

// Version returns the openapi or swagger version string
func (d *Document) Version() string {
	return d.version
}

// IsSwagger reports whether the document is a Swagger 2.0 document
func (d *Document) IsSwagger() bool {
	return d.v2 != nil
}

// BasePath returns the base path from servers[0].url (v3) or basePath (v2).
// The boolean is false when the document declares neither.
func (d *Document) BasePath() (string, bool) {
	return d.basePath, d.hasBase
}

// Root returns the root object node shared with the libopenapi index
func (d *Document) Root() *yaml.Node {
	return d.root
}

// Logger returns the logger the document was parsed with
func (d *Document) Logger() *slog.Logger {
	return d.logger
}

// PathTemplates returns the declared path templates in declaration order
func (d *Document) PathTemplates() []string {
	return d.templates
}
