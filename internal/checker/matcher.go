package checker

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/parser"
)

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Placeholders returns the {name} placeholders of an endpoint template in
// order of appearance
func Placeholders(endpoint string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(endpoint, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// checkBaseURL verifies that rawURL is absolute and that its path lies
// under the document base path
func (c *Checker) checkBaseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, validationErrorf("url", "Invalid URL: %s", rawURL)
	}

	basePath, ok := c.doc.BasePath()
	if !ok {
		c.logger.Warn("no servers or basePath declared, base URL check skipped", "api", c.doc.Title())
		return u, nil
	}

	if !strings.HasPrefix(u.Path, basePath) {
		return nil, validationErrorf("url", "Invalid URL: %s", rawURL)
	}

	return u, nil
}

// matchEndpoint returns the operation declared for endpoint and method.
// The endpoint is looked up verbatim; the segment pass only reports
// segments that no declared template contains.
func (c *Checker) matchEndpoint(endpoint, method string) (*parser.Operation, error) {
	templates := c.doc.PathTemplates()

	for _, segment := range strings.Split(endpoint, "/") {
		if segment == "" || strings.Contains(segment, "_") ||
			(strings.Contains(segment, "{") && strings.Contains(segment, "}")) {
			continue
		}
		if !slices.ContainsFunc(templates, func(t string) bool {
			return slices.Contains(strings.Split(t, "/"), segment)
		}) {
			c.logger.Debug("endpoint segment not declared by any path", "segment", segment, "endpoint", endpoint)
		}
	}

	if !slices.Contains(templates, endpoint) {
		return nil, validationErrorf("endpoint", "Endpoint %s not found in OpenAPI spec", endpoint)
	}

	op := c.doc.Operation(endpoint, method)
	if op == nil {
		return nil, validationErrorf("method", "Method %s not found for endpoint %s", method, endpoint)
	}

	return op, nil
}
