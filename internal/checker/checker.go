// Package checker validates API requests against an OpenAPI document and
// answers valid ones with a generated mock response.
//
// A check runs through a fixed sequence of states:
//
//	START -> URL_CHECKED -> ENDPOINT_MATCHED -> PARAMS_VALIDATED ->
//	RESPONSE_SELECTED -> RESPONSE_GENERATED -> AUDITED -> DONE
//
// Any state may end in FAILED. Contract violations produce a 400 verdict,
// every other failure a 500 verdict.
package checker

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/generator"
	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/moamenhredeen/apicheck/internal/models"
	"github.com/moamenhredeen/apicheck/internal/parser"
	"github.com/pb33f/libopenapi/orderedmap"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v4"
)

// State is a step of a single check
type State string

const (
	StateStart             State = "START"
	StateURLChecked        State = "URL_CHECKED"
	StateEndpointMatched   State = "ENDPOINT_MATCHED"
	StateParamsValidated   State = "PARAMS_VALIDATED"
	StateResponseSelected  State = "RESPONSE_SELECTED"
	StateResponseGenerated State = "RESPONSE_GENERATED"
	StateAudited           State = "AUDITED"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// InternalErrorMessage is the only detail a 500 verdict exposes
const InternalErrorMessage = "Internal server error"

// Checker checks requests against one document. It owns a generator and is
// not safe for concurrent use; the document itself may be shared.
type Checker struct {
	doc          *parser.Document
	gen          *generator.Generator
	logger       *slog.Logger
	collectAll   bool
	auditEnabled bool
	seed         *uint64

	patterns map[string]*regexp.Regexp
	schemas  map[*yaml.Node]*jsonschema.Schema
}

// Option configures a Checker
type Option func(*Checker)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGenerator sets the mock generator
func WithGenerator(gen *generator.Generator) Option {
	return func(c *Checker) {
		c.gen = gen
	}
}

// WithSeed makes mock generation reproducible. It is ignored when
// WithGenerator is also given.
func WithSeed(seed uint64) Option {
	return func(c *Checker) {
		c.seed = &seed
	}
}

// WithCollectAll reports every parameter violation instead of the first
func WithCollectAll(collectAll bool) Option {
	return func(c *Checker) {
		c.collectAll = collectAll
	}
}

// WithAudit toggles validation of generated mocks against their schema
func WithAudit(enabled bool) Option {
	return func(c *Checker) {
		c.auditEnabled = enabled
	}
}

// New creates a checker for doc
func New(doc *parser.Document, opts ...Option) *Checker {
	c := &Checker{
		doc:          doc,
		logger:       logging.Nop(),
		auditEnabled: true,
		patterns:     make(map[string]*regexp.Regexp),
		schemas:      make(map[*yaml.Node]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gen == nil {
		genOpts := []generator.Option{generator.WithLogger(c.logger)}
		if c.seed != nil {
			genOpts = append(genOpts, generator.WithSeed(*c.seed))
		}
		c.gen = generator.New(doc, genOpts...)
	}
	return c
}

// Check validates req and returns its verdict. It never panics.
func (c *Checker) Check(req models.Request) (verdict models.Verdict) {
	logger := c.logger.With("api", req.APIName, "method", req.Method, "endpoint", req.Endpoint)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("check panicked", "state", StateFailed, "panic", r, "stack", string(debug.Stack()))
			verdict = internalError()
		}
	}()

	logger.Debug("check state", "state", StateStart, "url", req.URL)

	data, status, err := c.check(logger, req)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			logger.Info("request rejected", "state", StateFailed, "field", ve.Field, "error", ve.Message)
			return models.Verdict{StatusCode: http.StatusBadRequest, Data: map[string]any{"error": ve.Message}}
		}
		logger.Error("check failed", "state", StateFailed, "error", err)
		return internalError()
	}

	logger.Info("mock execution completed", "state", StateDone, "status", status)
	return models.Verdict{StatusCode: status, Data: data}
}

func internalError() models.Verdict {
	return models.Verdict{StatusCode: http.StatusInternalServerError, Data: map[string]any{"error": InternalErrorMessage}}
}

func (c *Checker) check(logger *slog.Logger, req models.Request) (any, int, error) {
	u, err := c.checkBaseURL(req.URL)
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("check state", "state", StateURLChecked)

	op, err := c.matchEndpoint(req.Endpoint, req.Method)
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("check state", "state", StateEndpointMatched)

	specs, err := c.declaredParams(op)
	if err != nil {
		return nil, 0, err
	}
	if err := c.validateParams(combineParams(req.Params, u.Query()), Placeholders(req.Endpoint), specs); err != nil {
		return nil, 0, err
	}
	logger.Debug("check state", "state", StateParamsValidated)

	code, status, response := c.selectResponse(op)
	logger.Debug("check state", "state", StateResponseSelected, "code", code)

	if status == http.StatusNoContent {
		return nil, status, nil
	}

	schemaNode := c.responseSchema(response)
	if schemaNode == nil {
		return orderedmap.New[string, any](), status, nil
	}

	mock, err := c.gen.Generate(schemaNode)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate mock response: %w", err)
	}
	logger.Debug("check state", "state", StateResponseGenerated)

	c.audit(schemaNode, mock)
	logger.Debug("check state", "state", StateAudited)

	return mock, status, nil
}

// selectResponse picks the first declared 2xx response, or "200" when none
// is declared. Range keys such as 2XX report status 200.
func (c *Checker) selectResponse(op *parser.Operation) (string, int, *parser.Response) {
	code := "200"
	for key := range op.Responses.KeysFromOldest() {
		if strings.HasPrefix(key, "2") {
			code = key
			break
		}
	}

	status, err := strconv.Atoi(code)
	if err != nil {
		status = http.StatusOK
	}

	return code, status, op.Responses.GetOrZero(code)
}

// responseSchema returns the schema of the JSON media type of response, or
// nil when the response has no JSON content. The schema of a Swagger 2
// response is not read, so Swagger 2 checks answer with an empty object.
func (c *Checker) responseSchema(response *parser.Response) *yaml.Node {
	if response == nil || response.Content == nil {
		return nil
	}
	if schema, ok := response.Content.Get("application/json"); ok {
		return schema
	}
	for mediaType, schema := range response.Content.FromOldest() {
		if strings.Contains(mediaType, "json") {
			return schema
		}
	}
	return nil
}
