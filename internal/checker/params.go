package checker

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/parser"
)

// paramSpec is a declared parameter after $ref resolution
type paramSpec struct {
	name     string
	in       string
	required bool
	schema   parser.Schema
}

// declaredParams merges the path item parameters with the operation
// parameters. An operation parameter replaces a path item parameter with the
// same name and location.
func (c *Checker) declaredParams(op *parser.Operation) ([]paramSpec, error) {
	var specs []paramSpec
	index := make(map[string]int)

	for _, list := range [][]parser.Parameter{op.PathParameters, op.Parameters} {
		for _, param := range list {
			if param.Name == "" {
				c.logger.Warn("parameter specification missing name", "endpoint", op.Template, "in", param.In)
				continue
			}

			schemaNode, _ := c.doc.Resolve(param.Schema)
			schema, err := parser.ParseSchema(schemaNode)
			if err != nil {
				return nil, fmt.Errorf("failed to read schema of parameter %q: %w", param.Name, err)
			}
			spec := paramSpec{
				name:     param.Name,
				in:       param.In,
				required: param.Required,
				schema:   schema,
			}

			key := spec.in + ":" + spec.name
			if i, ok := index[key]; ok {
				specs[i] = spec
				continue
			}
			index[key] = len(specs)
			specs = append(specs, spec)
		}
	}

	return specs, nil
}

// combineParams overlays the first value of every query parameter on the
// caller supplied params
func combineParams(params map[string]any, query url.Values) map[string]any {
	combined := make(map[string]any, len(params)+len(query))
	for k, v := range params {
		combined[k] = v
	}
	for k, values := range query {
		if len(values) > 0 {
			combined[k] = values[0]
		}
	}
	return combined
}

// validateParams applies the parameter rules in order. It stops at the first
// violation unless the checker collects all of them.
func (c *Checker) validateParams(params map[string]any, placeholders []string, specs []paramSpec) error {
	var violations []*ValidationError
	report := func(e *ValidationError) bool {
		violations = append(violations, e)
		return c.collectAll
	}
	done := func() error {
		if e := joinValidationErrors(violations); e != nil {
			return e
		}
		return nil
	}

	for _, name := range placeholders {
		if _, ok := params[name]; !ok {
			if !report(validationErrorf(name, "Missing path parameter: %s", name)) {
				return done()
			}
		}
	}

	expected := make(map[string]bool, len(specs)+len(placeholders))
	for _, spec := range specs {
		expected[spec.name] = true
	}
	for _, name := range placeholders {
		expected[name] = true
	}
	var unexpected []string
	for name := range params {
		if !expected[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		if !report(validationErrorf("parameters", "Unexpected parameter(s): %s", strings.Join(unexpected, ", "))) {
			return done()
		}
	}

	for _, spec := range specs {
		value, ok := params[spec.name]
		if !ok {
			continue
		}
		c.logger.Debug("validating parameter", "name", spec.name)
		for _, check := range []func(paramSpec, any) *ValidationError{checkType, checkEnum, c.checkPattern} {
			if e := check(spec, value); e != nil {
				if !report(e) {
					return done()
				}
			}
		}
	}

	for _, spec := range specs {
		if !spec.required || slices.Contains(placeholders, spec.name) {
			continue
		}
		if _, ok := params[spec.name]; !ok {
			if !report(validationErrorf(spec.name, "Missing required parameter: %s", spec.name)) {
				return done()
			}
		}
	}

	return done()
}

func checkType(spec paramSpec, value any) *ValidationError {
	var ok bool
	switch spec.schema.Kind {
	case parser.KindString:
		_, ok = value.(string)
	case parser.KindInteger:
		ok = isInteger(value)
	case parser.KindNumber:
		ok = isNumber(value)
	case parser.KindBoolean:
		ok = isBoolean(value)
	default:
		return nil
	}
	if ok {
		return nil
	}
	return validationErrorf(spec.name, "Invalid type for parameter '%s'. Expected %s.", spec.name, spec.schema.Type)
}

func checkEnum(spec paramSpec, value any) *ValidationError {
	if len(spec.schema.Enum) == 0 {
		return nil
	}
	for _, allowed := range spec.schema.Enum {
		if enumEqual(allowed, value) {
			return nil
		}
	}
	values, err := json.Marshal(spec.schema.Enum)
	if err != nil {
		values = []byte(fmt.Sprint(spec.schema.Enum))
	}
	return validationErrorf(spec.name, "Invalid value for parameter '%s'. Must be one of: %s", spec.name, values)
}

func (c *Checker) checkPattern(spec paramSpec, value any) *ValidationError {
	if spec.schema.Pattern == "" {
		return nil
	}
	re, err := c.compilePattern(spec.schema.Pattern)
	if err != nil {
		c.logger.Warn("parameter pattern cannot be compiled, skipped", "name", spec.name, "pattern", spec.schema.Pattern, "error", err)
		return nil
	}
	if re.MatchString(fmt.Sprint(value)) {
		return nil
	}
	return validationErrorf(spec.name, "Invalid format for parameter '%s'. Must match pattern: %s", spec.name, spec.schema.Pattern)
}

// compilePattern anchors a pattern at the start of the value only
func (c *Checker) compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	c.patterns[pattern] = re
	return re, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float64(v) == math.Trunc(float64(v))
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	case string:
		return isDigits(v)
	}
	return false
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		return strings.Count(v, ".") <= 1 && isDigits(strings.Replace(v, ".", "", 1))
	}
	return false
}

func isBoolean(value any) bool {
	switch v := value.(type) {
	case bool:
		return true
	case string:
		return strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
	}
	return false
}

// enumEqual compares by value, numbers across Go types, falling back to the
// string form so "1" matches an integer enum member
func enumEqual(allowed, value any) bool {
	if reflect.DeepEqual(allowed, value) {
		return true
	}
	if a, ok := toFloat(allowed); ok {
		if v, ok := toFloat(value); ok {
			return a == v
		}
	}
	return fmt.Sprint(allowed) == fmt.Sprint(value)
}

func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	if n, ok := value.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
