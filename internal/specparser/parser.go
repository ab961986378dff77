// Package specparser normalizes OpenAPI/Swagger and Postman documents
// into the shared model.ServerSpec shape.
package specparser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/blackcoderx/mfp/internal/hashutil"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

// maxSchemaDepth bounds nested field extraction: one top level plus one
// nested object/array, per the data model's ResponseField invariant.
const maxSchemaDepth = 2

var complexKeywords = []string{"oneOf", "anyOf", "allOf", "discriminator", "not"}

// Parser produces a model.ServerSpec from a model.SwaggerSource. Each
// concrete format (OpenAPI, Postman) implements it; Parse is tried against
// DetectFormat in registration order by ParseAny.
type Parser interface {
	DetectFormat(content []byte) bool
	Parse(content []byte, source model.SwaggerSource) (*model.ServerSpec, error)
}

var parsers = []Parser{
	&OpenAPIParser{},
	&PostmanParser{},
}

// ParseAny fetches a source's spec bytes, hashes them, and dispatches to
// whichever registered parser claims the format.
func ParseAny(ctx context.Context, source model.SwaggerSource) (*model.ServerSpec, error) {
	raw, err := fetchDocument(ctx, source.SwaggerURL)
	if err != nil {
		return nil, err
	}
	swaggerHash := hashutil.HashContent(raw)

	for _, p := range parsers {
		if !p.DetectFormat(raw) {
			continue
		}
		spec, err := p.Parse(raw, source)
		if err != nil {
			return nil, mfperrors.NewCompileError(fmt.Sprintf("parsing spec for %q", source.Name), err)
		}
		spec.SwaggerHash = swaggerHash
		if spec.BaseURL == "" {
			spec.BaseURL = source.BaseURL
		}
		spec.ReadOnly = source.IsReadOnly
		if spec.ReadOnly {
			spec.Endpoints = filterReadOnly(spec.Endpoints)
		}
		return spec, nil
	}
	return nil, mfperrors.NewCompileError(fmt.Sprintf("unrecognized spec format for %q", source.Name), nil)
}

func filterReadOnly(endpoints []model.EndpointSpec) []model.EndpointSpec {
	kept := make([]model.EndpointSpec, 0, len(endpoints))
	for _, ep := range endpoints {
		if model.MutatingMethods[ep.Method] {
			continue
		}
		kept = append(kept, ep)
	}
	return kept
}

// fetchDocument reads spec bytes from an http(s) URL (30s timeout,
// following redirects, non-2xx is a SpecFetchError) or a local filesystem
// path, returning the exact bytes retrieved so ParseAny hashes them
// bit-exactly.
func fetchDocument(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fetchRemote(location)
	}
	content, err := os.ReadFile(location)
	if err != nil {
		return nil, mfperrors.NewSpecFetchError(fmt.Sprintf("reading local spec %q", location), err)
	}
	return content, nil
}

func fetchRemote(location string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(location)
	req.Header.SetMethod(fasthttp.MethodGet)

	client := &fasthttp.Client{
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxConnWaitTimeout: 30 * time.Second,
	}
	if err := client.DoRedirects(req, resp, 5); err != nil {
		return nil, mfperrors.NewSpecFetchError(fmt.Sprintf("fetching spec %q", location), err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, mfperrors.NewSpecFetchError(
			fmt.Sprintf("fetching spec %q returned HTTP %d", location, resp.StatusCode()), nil)
	}

	body := resp.Body()
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

var identRunRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// sanitizeIdentifier implements the operation_id sanitization rule: runs
// of non [a-zA-Z0-9_] collapse, a leading digit gets an "fn_" prefix, and
// the result is lowercased.
func sanitizeIdentifier(raw string) string {
	s := identRunRe.ReplaceAllString(raw, "_")
	s = strings.Trim(s, "_")
	s = strings.ToLower(s)
	if s == "" {
		s = "op"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "fn_" + s
	}
	return s
}

// synthesizeOperationID builds {method}_{path parts joined by _} when no
// operationId is present in the source document.
func synthesizeOperationID(method model.HTTPMethod, path string) string {
	parts := strings.Split(path, "/")
	var clean []string
	for _, p := range parts {
		p = strings.Trim(p, "{}")
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		clean = append(clean, p)
	}
	raw := strings.ToLower(string(method)) + "_" + strings.Join(clean, "_")
	return sanitizeIdentifier(raw)
}

// dedupeOperationIDs appends a numeric suffix to any operation_id that
// repeats within one ServerSpec, preserving the unique-per-server
// invariant even when two operations generate the same synthesized id.
func dedupeOperationIDs(endpoints []model.EndpointSpec) {
	seen := make(map[string]int)
	for i := range endpoints {
		id := endpoints[i].OperationID
		seen[id]++
		if seen[id] > 1 {
			endpoints[i].OperationID = fmt.Sprintf("%s_%d", id, seen[id]-1)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
