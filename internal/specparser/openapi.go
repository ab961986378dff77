package specparser

import (
	"fmt"
	"strings"

	"github.com/pb33f/libopenapi"
	highbase "github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	orderedmap "github.com/pb33f/libopenapi/orderedmap"

	"github.com/blackcoderx/mfp/internal/model"
)

// OpenAPIParser implements Parser for OpenAPI 3.x and Swagger 2.0
// documents via libopenapi's v3 high-level model.
type OpenAPIParser struct{}

func (p *OpenAPIParser) DetectFormat(content []byte) bool {
	s := string(content)
	return strings.Contains(s, "openapi") || strings.Contains(s, "swagger")
}

func (p *OpenAPIParser) Parse(content []byte, source model.SwaggerSource) (*model.ServerSpec, error) {
	document, err := libopenapi.NewDocument(content)
	if err != nil {
		return nil, fmt.Errorf("parsing spec document: %w", err)
	}

	docModel, errs := document.BuildV3Model()
	if errs != nil && docModel == nil {
		return nil, fmt.Errorf("building v3 model: %v", errs)
	}

	m := &docModel.Model
	description := firstNonEmpty(m.Info.Description, m.Info.Title, source.Name)

	spec := &model.ServerSpec{
		Name:        source.Name,
		Description: truncate(description, 1000),
	}

	if m.Paths == nil {
		return spec, nil
	}

	for pair := m.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()

		pathLevelParams := item.Parameters

		ops := []struct {
			method model.HTTPMethod
			op     *v3.Operation
		}{
			{model.MethodGET, item.Get},
			{model.MethodPOST, item.Post},
			{model.MethodPUT, item.Put},
			{model.MethodPATCH, item.Patch},
			{model.MethodDELETE, item.Delete},
			{model.MethodHEAD, item.Head},
			{model.MethodOPTIONS, item.Options},
		}

		for _, entry := range ops {
			if entry.op == nil {
				continue
			}
			endpoint, err := p.parseOperation(path, entry.method, entry.op, pathLevelParams)
			if err != nil {
				// Individual operations that fail to parse are skipped, never fatal.
				continue
			}
			spec.Endpoints = append(spec.Endpoints, *endpoint)
		}
	}

	dedupeOperationIDs(spec.Endpoints)
	return spec, nil
}

func (p *OpenAPIParser) parseOperation(path string, method model.HTTPMethod, op *v3.Operation, pathParams []*v3.Parameter) (*model.EndpointSpec, error) {
	opID := op.OperationId
	if opID == "" {
		opID = synthesizeOperationID(method, path)
	} else {
		opID = sanitizeIdentifier(opID)
	}

	endpoint := &model.EndpointSpec{
		Path:           path,
		Method:         method,
		OperationID:    opID,
		Summary:        truncate(op.Summary, 200),
		Description:    truncate(op.Description, 1000),
		HasRequestBody: op.RequestBody != nil,
		Tags:           op.Tags,
		Parameters:     p.mergeParameters(pathParams, op.Parameters),
	}

	if op.Responses != nil {
		endpoint.ResponseFields = p.parseResponseFields(op.Responses)
	}

	return endpoint, nil
}

// mergeParameters prepends path-level parameters to operation parameters,
// deduplicating by name with first-wins semantics.
func (p *OpenAPIParser) mergeParameters(pathParams, opParams []*v3.Parameter) []model.ParamSchema {
	seen := make(map[string]bool)
	var result []model.ParamSchema

	add := func(param *v3.Parameter) {
		if param == nil || seen[param.Name] {
			return
		}
		seen[param.Name] = true

		loc := model.ParamLocation(param.In)
		required := param.In == "path" || (param.Required != nil && *param.Required)

		ps := model.ParamSchema{
			Name:     param.Name,
			Location: loc,
			Type:     extractParamType(param.Schema),
			Required: required,
		}
		if enumVals, ok := extractEnum(param.Schema); ok {
			ps.Enum = enumVals
		}
		result = append(result, ps)
	}

	for _, param := range pathParams {
		add(param)
	}
	for _, param := range opParams {
		add(param)
	}
	return result
}

func extractParamType(schema *highbase.SchemaProxy) model.ParamType {
	if schema == nil || schema.Schema() == nil {
		return model.TypeString
	}
	return extractType(schema.Schema().Type)
}

func extractEnum(schema *highbase.SchemaProxy) ([]string, bool) {
	if schema == nil || schema.Schema() == nil || len(schema.Schema().Enum) == 0 {
		return nil, false
	}
	var out []string
	for _, v := range schema.Schema().Enum {
		if v != nil && v.Value != "" {
			out = append(out, fmt.Sprintf("%v", v.Value))
		}
	}
	return out, len(out) > 0
}

// extractType handles the `type` field being either a single string or a
// nullable ["T", "null"] pair, defaulting to "string" when absent.
func extractType(types []string) model.ParamType {
	if len(types) == 0 {
		return model.TypeString
	}
	for _, t := range types {
		if t != "null" {
			return normalizeType(t)
		}
	}
	return model.TypeString
}

func normalizeType(t string) model.ParamType {
	switch t {
	case "integer":
		return model.TypeInteger
	case "number":
		return model.TypeNumber
	case "boolean":
		return model.TypeBoolean
	case "object":
		return model.TypeObject
	case "array":
		return model.TypeArray
	default:
		return model.TypeString
	}
}

// hasComplexKeyword reports whether a schema uses oneOf/anyOf/allOf/
// discriminator/not. Such schemas are classified unsupported and reduced
// to an empty field set rather than failing.
func hasComplexKeyword(schema *highbase.Schema) bool {
	if schema == nil {
		return false
	}
	return len(schema.OneOf) > 0 || len(schema.AnyOf) > 0 || len(schema.AllOf) > 0 ||
		schema.Discriminator != nil || schema.Not != nil
}

func extractJSONSchema(content *orderedmap.Map[string, *v3.MediaType]) (*highbase.SchemaProxy, bool) {
	if content == nil {
		return nil, false
	}
	for pair := content.First(); pair != nil; pair = pair.Next() {
		if pair.Key() == "application/json" {
			mediaType := pair.Value()
			if mediaType != nil && mediaType.Schema != nil {
				return mediaType.Schema, true
			}
		}
	}
	return nil, false
}

func (p *OpenAPIParser) parseResponseFields(responses *v3.Responses) []model.ResponseField {
	if responses == nil || responses.Codes == nil {
		return nil
	}
	for _, code := range []string{"200", "201", "200-299"} {
		for pair := responses.Codes.First(); pair != nil; pair = pair.Next() {
			if pair.Key() != code {
				continue
			}
			resp := pair.Value()
			if resp == nil {
				continue
			}
			if schema, ok := extractJSONSchema(resp.Content); ok {
				return schemaToFields(schema, 0)
			}
		}
	}
	return nil
}

// schemaToFields recursively walks a schema into ResponseFields, capped at
// maxSchemaDepth and short-circuiting on oneOf/anyOf/allOf/discriminator/not.
func schemaToFields(proxy *highbase.SchemaProxy, depth int) []model.ResponseField {
	if proxy == nil || proxy.Schema() == nil {
		return nil
	}
	schema := proxy.Schema()
	if hasComplexKeyword(schema) {
		return nil
	}

	t := extractType(schema.Type)
	switch t {
	case model.TypeArray:
		if schema.Items == nil || schema.Items.A == nil {
			return []model.ResponseField{{Name: "items", Type: model.TypeArray, Kind: model.FieldArray}}
		}
		var itemFields []model.ResponseField
		if depth+1 < maxSchemaDepth {
			itemFields = schemaToFields(schema.Items.A, depth+1)
		}
		return []model.ResponseField{{Name: "items", Type: model.TypeArray, Kind: model.FieldArray, Fields: itemFields}}
	case model.TypeObject:
		if schema.Properties == nil {
			return nil
		}
		var fields []model.ResponseField
		for pair := schema.Properties.First(); pair != nil; pair = pair.Next() {
			name := pair.Key()
			propSchema := pair.Value()
			if propSchema == nil || propSchema.Schema() == nil {
				fields = append(fields, model.ResponseField{Name: name, Type: model.TypeString, Kind: model.FieldScalar})
				continue
			}
			propType := extractType(propSchema.Schema().Type)
			if propType == model.TypeObject || propType == model.TypeArray {
				var nested []model.ResponseField
				if depth+1 < maxSchemaDepth {
					nested = schemaToFields(propSchema, depth+1)
				}
				kind := model.FieldNested
				if propType == model.TypeArray {
					kind = model.FieldArray
				}
				fields = append(fields, model.ResponseField{Name: name, Type: propType, Kind: kind, Fields: nested})
				continue
			}
			fields = append(fields, model.ResponseField{Name: name, Type: propType, Kind: model.FieldScalar})
		}
		return fields
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
