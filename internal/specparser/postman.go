package specparser

import (
	"strings"

	postman "github.com/rbretecher/go-postman-collection"

	"github.com/blackcoderx/mfp/internal/model"
)

// PostmanParser implements Parser for Postman Collection v2.1 documents,
// a second supported source format alongside OpenAPI.
//
// Postman collections carry no operationId or nested schema depth, so
// endpoints here get synthesized operation_ids and flat string-typed
// parameters; this is a deliberate reduction of this format's
// expressiveness, not a bug.
type PostmanParser struct{}

func (p *PostmanParser) DetectFormat(content []byte) bool {
	s := string(content)
	return strings.Contains(s, "_postman_id") || (strings.Contains(s, "\"info\"") && strings.Contains(s, "schema"))
}

func (p *PostmanParser) Parse(content []byte, source model.SwaggerSource) (*model.ServerSpec, error) {
	r := strings.NewReader(string(content))
	collection, err := postman.ParseCollection(r)
	if err != nil {
		return nil, err
	}

	spec := &model.ServerSpec{
		Name:        source.Name,
		Description: firstNonEmpty(collection.Info.Name, source.Name),
	}

	p.processItems(collection.Items, spec)
	dedupeOperationIDs(spec.Endpoints)
	return spec, nil
}

func (p *PostmanParser) processItems(items []*postman.Items, spec *model.ServerSpec) {
	for _, item := range items {
		if item.IsGroup() {
			p.processItems(item.Items, spec)
			continue
		}
		if item.Request == nil {
			continue
		}
		p.addEndpoint(item, spec)
	}
}

func (p *PostmanParser) addEndpoint(item *postman.Items, spec *model.ServerSpec) {
	req := item.Request
	method := model.HTTPMethod(strings.ToUpper(string(req.Method)))

	path := ""
	var queryParams []model.ParamSchema
	if req.URL != nil {
		path = req.URL.Raw
		for _, q := range req.URL.Query {
			queryParams = append(queryParams, model.ParamSchema{
				Name:     q.Key,
				Location: model.LocationQuery,
				Type:     model.TypeString,
				Required: false,
			})
		}
	}

	var headerParams []model.ParamSchema
	for _, h := range req.Header {
		headerParams = append(headerParams, model.ParamSchema{
			Name:     h.Key,
			Location: model.LocationHeader,
			Type:     model.TypeString,
			Required: false,
		})
	}

	endpoint := model.EndpointSpec{
		Path:           path,
		Method:         method,
		OperationID:    synthesizeOperationID(method, item.Name),
		Summary:        truncate(item.Name, 200),
		HasRequestBody: req.Body != nil,
		Parameters:     append(headerParams, queryParams...),
	}
	spec.Endpoints = append(spec.Endpoints, endpoint)
}
