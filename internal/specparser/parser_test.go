package specparser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackcoderx/mfp/internal/model"
)

const hotelSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "Hotel API"},
  "paths": {
    "/hotels": {
      "get": {"operationId": "listHotels", "summary": "List hotels", "responses": {}},
      "post": {"operationId": "createHotel", "summary": "Create a hotel", "responses": {}}
    },
    "/hotels/{id}": {
      "delete": {"operationId": "deleteHotel", "summary": "Delete a hotel", "responses": {}}
    }
  }
}`

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseAnyReadOnlyDropsMutatingEndpoints(t *testing.T) {
	path := writeSpec(t, hotelSpec)
	source := model.SwaggerSource{Name: "hotel", SwaggerURL: path, IsReadOnly: true}

	spec, err := ParseAny(context.Background(), source)
	if err != nil {
		t.Fatalf("ParseAny: %v", err)
	}
	if len(spec.Endpoints) != 1 {
		t.Fatalf("expected only the GET endpoint, got %+v", spec.Endpoints)
	}
	if spec.Endpoints[0].Method != model.MethodGET {
		t.Fatalf("expected method set {GET}, got %s", spec.Endpoints[0].Method)
	}
}

func TestParseAnySwaggerHashIsReproducible(t *testing.T) {
	path := writeSpec(t, hotelSpec)
	source := model.SwaggerSource{Name: "hotel", SwaggerURL: path}

	first, err := ParseAny(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseAny(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if first.SwaggerHash != second.SwaggerHash {
		t.Fatalf("re-parsing identical bytes must produce the same hash: %s vs %s", first.SwaggerHash, second.SwaggerHash)
	}
	if len(first.SwaggerHash) != 64 {
		t.Fatalf("expected a 64-char lowercase sha-256 hex digest, got %q", first.SwaggerHash)
	}
}

func TestParseAnyMissingFileIsSpecFetchError(t *testing.T) {
	source := model.SwaggerSource{Name: "gone", SwaggerURL: "/nonexistent/spec.json"}
	if _, err := ParseAny(context.Background(), source); err == nil {
		t.Fatal("expected a fetch error for a missing file")
	}
}

func TestOpenAPIDetectFormat(t *testing.T) {
	p := &OpenAPIParser{}
	if !p.DetectFormat([]byte(`openapi: 3.0.0`)) {
		t.Error("expected OpenAPI parser to detect an openapi document")
	}
	if !p.DetectFormat([]byte(`{"swagger": "2.0"}`)) {
		t.Error("expected OpenAPI parser to detect a swagger 2.0 document")
	}
}

func TestPostmanDetectFormat(t *testing.T) {
	p := &PostmanParser{}
	content := []byte(`{"info": {"schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"}}`)
	if !p.DetectFormat(content) {
		t.Error("expected Postman parser to detect a postman collection")
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"getUserById":  "getuserbyid",
		"get-user--id": "get_user_id",
		"123abc":       "fn_123abc",
		"":             "op",
	}
	for in, want := range cases {
		if got := sanitizeIdentifier(in); got != want {
			t.Errorf("sanitizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSynthesizeOperationID(t *testing.T) {
	got := synthesizeOperationID(model.MethodGET, "/hotels/{id}/rooms")
	want := "get_hotels_id_rooms"
	if got != want {
		t.Errorf("synthesizeOperationID = %q, want %q", got, want)
	}
}

func TestFilterReadOnlyDropsMutatingMethods(t *testing.T) {
	endpoints := []model.EndpointSpec{
		{Method: model.MethodGET, OperationID: "list"},
		{Method: model.MethodPOST, OperationID: "create"},
		{Method: model.MethodDELETE, OperationID: "remove"},
	}
	kept := filterReadOnly(endpoints)
	if len(kept) != 1 || kept[0].Method != model.MethodGET {
		t.Fatalf("expected only the GET endpoint to survive read-only filtering, got %+v", kept)
	}
}

func TestDedupeOperationIDs(t *testing.T) {
	endpoints := []model.EndpointSpec{
		{OperationID: "get_x"},
		{OperationID: "get_x"},
		{OperationID: "get_x"},
	}
	dedupeOperationIDs(endpoints)
	seen := map[string]bool{}
	for _, ep := range endpoints {
		if seen[ep.OperationID] {
			t.Fatalf("expected unique operation ids, got duplicate %q", ep.OperationID)
		}
		seen[ep.OperationID] = true
	}
}
