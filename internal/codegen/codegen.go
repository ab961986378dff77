// Package codegen renders a model.ServerSpec into a self-contained
// Python callable-function module via text/template.
package codegen

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

//go:embed templates/functions.py.tmpl
var functionsTemplateSrc string

var funcMap = template.FuncMap{
	"safeName":    SafeName,
	"pyType":      swaggerTypeToPython,
}

var functionsTemplate = template.Must(template.New("functions").Funcs(funcMap).Parse(functionsTemplateSrc))

// Generate renders spec into a single Python source module exposing one
// function per endpoint.
func Generate(spec *model.ServerSpec) (string, error) {
	data := buildModuleData(spec)
	var sb strings.Builder
	if err := functionsTemplate.Execute(&sb, data); err != nil {
		return "", mfperrors.NewCompileError(fmt.Sprintf("rendering functions module for %q", spec.Name), err)
	}
	return sb.String(), nil
}

type moduleData struct {
	ServerName  string
	UpperName   string
	Description string
	Functions   []functionData
}

type functionData struct {
	OperationID     string
	Method          string
	PathExpr        string
	Signature       string
	ParamsDict      string
	HasQueryParams  bool
	HasBody         bool
	DocstringArgs   []string
	Summary         string
	ResponseFields  []string
}

func buildModuleData(spec *model.ServerSpec) moduleData {
	data := moduleData{
		ServerName:  spec.Name,
		UpperName:   strings.ToUpper(spec.Name),
		Description: spec.Description,
	}
	for _, ep := range spec.Endpoints {
		data.Functions = append(data.Functions, buildFunctionData(ep))
	}
	return data
}

func buildFunctionData(ep model.EndpointSpec) functionData {
	required, optional := splitParameters(ep.Parameters)

	fd := functionData{
		OperationID: ep.OperationID,
		Method:      string(ep.Method),
		PathExpr:    buildPathExpr(ep.Path, ep.Parameters),
		Summary:     ep.Summary,
		HasBody:     ep.HasRequestBody && model.MutatingMethods[ep.Method],
	}
	fd.Signature = buildSignature(required, optional, fd.HasBody)
	fd.ParamsDict, fd.HasQueryParams = buildParamsDict(ep.Parameters)
	fd.DocstringArgs = buildDocstringArgs(ep.Parameters, fd.HasBody)
	for _, rf := range ep.ResponseFields {
		fd.ResponseFields = append(fd.ResponseFields, rf.Name)
	}
	return fd
}

func splitParameters(params []model.ParamSchema) (required, optional []model.ParamSchema) {
	for _, p := range params {
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	return required, optional
}

// buildSignature orders required parameters first, then optional ones with
// a nullable default, then (if applicable) a trailing json_body parameter.
func buildSignature(required, optional []model.ParamSchema, hasBody bool) string {
	var parts []string
	for _, p := range required {
		parts = append(parts, fmt.Sprintf("%s: %s", SafeName(p.Name), swaggerTypeToPython(p.Type)))
	}
	for _, p := range optional {
		parts = append(parts, fmt.Sprintf("%s: %s | None = None", SafeName(p.Name), swaggerTypeToPython(p.Type)))
	}
	if hasBody {
		parts = append(parts, "json_body: dict | None = None")
	}
	return strings.Join(parts, ", ")
}

// buildParamsDict builds the query-parameter dict literal source, or the
// literal "None" when the endpoint takes no query parameters.
func buildParamsDict(params []model.ParamSchema) (string, bool) {
	var entries []string
	for _, p := range params {
		if p.Location != model.LocationQuery {
			continue
		}
		entries = append(entries, fmt.Sprintf(`"%s": %s`, p.Name, SafeName(p.Name)))
	}
	if len(entries) == 0 {
		return "None", false
	}
	return "{" + strings.Join(entries, ", ") + "}", true
}

// buildPathExpr replaces {name} path placeholders with the sanitized
// parameter identifier and wraps the result as an f-string.
func buildPathExpr(path string, params []model.ParamSchema) string {
	expr := path
	for _, p := range params {
		if p.Location != model.LocationPath {
			continue
		}
		expr = strings.ReplaceAll(expr, "{"+p.Name+"}", "{"+SafeName(p.Name)+"}")
	}
	return expr
}

func buildDocstringArgs(params []model.ParamSchema, hasBody bool) []string {
	var lines []string
	for _, p := range params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		lines = append(lines, fmt.Sprintf("%s (%s, %s)", SafeName(p.Name), p.Type, req))
	}
	if hasBody {
		lines = append(lines, "json_body (object, optional)")
	}
	return lines
}

var nonIdentRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// SafeName sanitizes a parameter name into a valid Python identifier:
// non-alphanumeric runs collapse to "_", edges are trimmed, a leading
// digit gets a "p_" prefix, and an empty result falls back to "param".
func SafeName(raw string) string {
	s := nonIdentRe.ReplaceAllString(raw, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "param"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "p_" + s
	}
	return s
}

func swaggerTypeToPython(t model.ParamType) string {
	switch t {
	case model.TypeInteger:
		return "int"
	case model.TypeNumber:
		return "float"
	case model.TypeBoolean:
		return "bool"
	case model.TypeObject:
		return "dict"
	case model.TypeArray:
		return "list"
	default:
		return "str"
	}
}
