package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// Plain-text or non-JSON endpoints outside the API contract.
var unvalidatedPaths = map[string]bool{
	"/healthz":          true,
	"/readyz":           true,
	"/version":          true,
	"/api/openapi.yaml": true,
	"/docs":             true,
}

// OpenAPIValidator checks API traffic against api/openapi/openapi.yaml.
type OpenAPIValidator struct {
	router routers.Router
}

// LoadOpenAPIValidator loads and validates the contract at specPath.
func LoadOpenAPIValidator(specPath string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI spec from %s: %w", specPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate OpenAPI spec: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{router: router}, nil
}

// ValidateExchange checks the request body sent and the response received.
// The response body is restored so callers can still decode it.
func (v *OpenAPIValidator) ValidateExchange(t *testing.T, method, path string, reqBody []byte, header http.Header, resp *http.Response) {
	t.Helper()

	if unvalidatedPaths[path] {
		return
	}

	// The legacy router matches on path only, without the test server host.
	req, err := http.NewRequest(method, path, bytes.NewReader(reqBody))
	if err != nil {
		t.Errorf("create validation request: %v", err)
		return
	}
	req.Header = header.Clone()

	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		t.Errorf("OpenAPI: no route for %s %s: %v", method, path, err)
		return
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	// Negative tests send malformed bodies on purpose and expect a 4xx.
	if resp.StatusCode < http.StatusBadRequest {
		if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
			t.Errorf("OpenAPI request validation failed for %s %s: %v", method, path, err)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("read response body: %v", err)
		return
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	})
	if err != nil {
		t.Errorf("OpenAPI response validation failed for %s %s (status %d):\n%s\nResponse body: %s",
			method, path, resp.StatusCode, truncate(err.Error(), 500), truncate(string(body), 200))
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
