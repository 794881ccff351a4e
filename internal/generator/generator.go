package generator

import (
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/moamenhredeen/apicheck/internal/parser"
	"github.com/pb33f/libopenapi/orderedmap"
	"go.yaml.in/yaml/v4"
)

// Truncated is returned in place of a value once generation exceeds
// parser.MaxDepth
const Truncated = "Max recursion depth exceeded"

const (
	dateTimeLayout = time.RFC3339
	dateLayout     = time.DateOnly
)

//go:embed words.txt
var wordList string

var words = strings.Fields(wordList)

// Generator builds mock values from the schemas of one document. A
// Generator owns its random source and is not safe for concurrent use.
type Generator struct {
	doc    *parser.Document
	rng    *rand.Rand
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithRand sets the random source
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// WithSeed seeds a private random source, making output reproducible
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger for unsupported schema warnings
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock sets the time source used for date and date-time values
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a generator for doc
func New(doc *parser.Document, opts ...Option) *Generator {
	g := &Generator{
		doc:    doc,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Generate builds a mock value for the schema node
func (g *Generator) Generate(node *yaml.Node) (any, error) {
	return g.generate(node, 0)
}

func (g *Generator) generate(node *yaml.Node, depth int) (any, error) {
	if depth > parser.MaxDepth {
		return Truncated, nil
	}

	schema, err := parser.ParseSchema(node)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	switch schema.Kind {
	case parser.KindRef:
		target, err := g.doc.Lookup(schema.Ref)
		if err != nil {
			return nil, err
		}
		return g.generate(target, depth+1)

	case parser.KindOpaque:
		return orderedmap.New[string, any](), nil

	case parser.KindObject:
		obj := orderedmap.New[string, any]()
		for _, prop := range schema.Properties {
			v, err := g.generate(prop.Schema, depth+1)
			if err != nil {
				return nil, err
			}
			obj.Set(prop.Name, v)
		}
		return obj, nil

	case parser.KindArray:
		count := 1 + g.rng.IntN(3)
		items := make([]any, count)
		for i := range items {
			v, err := g.generate(schema.Items, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	case parser.KindString:
		return g.generateString(schema), nil

	case parser.KindNumber:
		return math.Round(g.rng.Float64()*100*100) / 100, nil

	case parser.KindInteger:
		return g.rng.IntN(101), nil

	case parser.KindBoolean:
		return g.rng.IntN(2) == 1, nil

	case parser.KindUnknown:
		g.logger.Warn("unexpected schema type", "type", schema.Type)
		return orderedmap.New[string, any](), nil
	}

	return nil, fmt.Errorf("unhandled schema kind %s", schema.Kind)
}

func (g *Generator) generateString(schema parser.Schema) any {
	if len(schema.Enum) > 0 {
		return schema.Enum[g.rng.IntN(len(schema.Enum))]
	}

	switch schema.Format {
	case "date-time":
		return g.dateTime().Format(dateTimeLayout)
	case "date":
		return g.dateThisDecade().Format(dateLayout)
	}

	return g.word()
}

// dateTime returns a random instant between the Unix epoch and now
func (g *Generator) dateTime() time.Time {
	now := g.now().UTC()
	span := now.Unix()
	if span <= 0 {
		return now
	}
	return time.Unix(g.rng.Int64N(span+1), 0).UTC()
}

// dateThisDecade returns a random day between the start of the current
// decade and today
func (g *Generator) dateThisDecade() time.Time {
	now := g.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(now.Year()-now.Year()%10, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, g.rng.IntN(days+1))
}

func (g *Generator) word() string {
	return words[g.rng.IntN(len(words))]
}
