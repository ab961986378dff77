// Package model holds the data entities shared by the spec parser, code
// generator, compiler, registry, and cache: SwaggerSource, ServerSpec and
// its nested shapes, ServerManifest, and CacheEntry.
package model

import "time"

// ParamLocation is where a parameter is read from.
type ParamLocation string

const (
	LocationQuery  ParamLocation = "query"
	LocationPath   ParamLocation = "path"
	LocationHeader ParamLocation = "header"
	LocationBody   ParamLocation = "body"
)

// ParamType is the normalized JSON-schema-ish type of a parameter or field.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// ParamSchema describes one request parameter. Per the data model's
// invariant, a path-located parameter is always Required.
type ParamSchema struct {
	Name     string
	Location ParamLocation
	Type     ParamType
	Required bool
	Default  string
	Enum     []string
}

// FieldKind distinguishes a scalar response field from a nested object or
// an array of items, per the tagged-variant shape design notes recommend
// over a recursive nullable-list representation.
type FieldKind string

const (
	FieldScalar FieldKind = "scalar"
	FieldNested FieldKind = "nested"
	FieldArray  FieldKind = "array"
)

// ResponseField describes one field of a response body, recursing at most
// two levels deep (one top level plus one nested object/array).
type ResponseField struct {
	Name   string
	Type   ParamType
	Kind   FieldKind
	Fields []ResponseField // populated when Kind is FieldNested or FieldArray
}

// HTTPMethod is one of the seven standard verbs this system understands.
type HTTPMethod string

const (
	MethodGET     HTTPMethod = "GET"
	MethodPOST    HTTPMethod = "POST"
	MethodPUT     HTTPMethod = "PUT"
	MethodPATCH   HTTPMethod = "PATCH"
	MethodDELETE  HTTPMethod = "DELETE"
	MethodHEAD    HTTPMethod = "HEAD"
	MethodOPTIONS HTTPMethod = "OPTIONS"
)

// MutatingMethods is the set of methods a read_only source omits.
var MutatingMethods = map[HTTPMethod]bool{
	MethodPOST:   true,
	MethodPUT:    true,
	MethodPATCH:  true,
	MethodDELETE: true,
}

// EndpointSpec is one (method, path) operation with its parameters and
// response shape.
type EndpointSpec struct {
	Path            string
	Method          HTTPMethod
	OperationID     string
	Summary         string
	Description     string
	Parameters      []ParamSchema
	HasRequestBody  bool
	ResponseFields  []ResponseField
	Tags            []string
}

// ServerSpec is the normalized, hash-stamped in-memory model of one parsed
// spec.
type ServerSpec struct {
	Name        string
	Description string
	BaseURL     string
	ReadOnly    bool
	Endpoints   []EndpointSpec
	SwaggerHash string
}

// SwaggerSource is one entry of the configured source list. It is
// immutable for a run.
type SwaggerSource struct {
	Name         string            `yaml:"name" json:"name"`
	SwaggerURL   string            `yaml:"swagger_url" json:"swagger_url"`
	BaseURL      string            `yaml:"base_url" json:"base_url"`
	AuthHeader   string            `yaml:"auth_header" json:"auth_header,omitempty"`
	IsReadOnly   bool              `yaml:"is_read_only" json:"is_read_only,omitempty"`
	ExtraHeaders map[string]string `yaml:"extra_headers" json:"extra_headers,omitempty"`
}

// SourceList is the top-level shape of the YAML/JSON source list file.
type SourceList struct {
	Servers []SwaggerSource `yaml:"servers" json:"servers"`
}

// EndpointManifestRow is one endpoint's entry inside ServerManifest, with
// parameters/response summarized as human-readable strings (the registry
// returns these strings as-is in get_function results, mirroring the
// original implementation's manifest shape).
type EndpointManifestRow struct {
	OperationID        string `json:"operation_id"`
	Method             string `json:"method"`
	Path               string `json:"path"`
	Summary            string `json:"summary"`
	ParametersSummary  string `json:"parameters_summary"`
	ResponseSummary    string `json:"response_summary"`
}

// ServerManifest is the on-disk summary of a compiled server.
type ServerManifest struct {
	ServerName  string                `json:"server_name"`
	Description string                `json:"description"`
	SwaggerHash string                `json:"swagger_hash"`
	CompiledAt  time.Time             `json:"compiled_at"`
	BaseURL     string                `json:"base_url"`
	ReadOnly    bool                  `json:"read_only"`
	Endpoints   []EndpointManifestRow `json:"endpoints"`
}

// CacheEntry is one row of the execution cache: normalized-code id mapped
// to its description, source, dependency set, and usage bookkeeping.
type CacheEntry struct {
	ID          string
	Description string
	Code        string
	ServersUsed []string
	SwaggerHash string
	CreatedAt   time.Time
	LastUsedAt  time.Time
	UseCount    int
	TTLSeconds  int
}

// ExecutionResult is the outcome of one execute_code call.
type ExecutionResult struct {
	Success         bool        `json:"success"`
	Data            interface{} `json:"data,omitempty"`
	Error           string      `json:"error,omitempty"`
	ErrorType       string      `json:"error_type,omitempty"`
	Traceback       string      `json:"traceback,omitempty"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
	CacheID         string      `json:"cache_id,omitempty"`
}
