package codegen

import (
	"strings"
	"testing"

	"github.com/blackcoderx/mfp/internal/model"
)

func TestSafeNameSanitizes(t *testing.T) {
	cases := map[string]string{
		"hotel-id": "hotel_id",
		"123":      "p_123",
		"":         "param",
		"city":     "city",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateProducesCallableModule(t *testing.T) {
	spec := &model.ServerSpec{
		Name:        "weather",
		Description: "Weather lookup API",
		Endpoints: []model.EndpointSpec{
			{
				Path:        "/forecast/{city}",
				Method:      model.MethodGET,
				OperationID: "get_forecast",
				Summary:     "Get the forecast for a city",
				Parameters: []model.ParamSchema{
					{Name: "city", Location: model.LocationPath, Type: model.TypeString, Required: true},
					{Name: "days", Location: model.LocationQuery, Type: model.TypeInteger, Required: false},
				},
			},
		},
	}

	code, err := Generate(spec)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(code, "def get_forecast(city: str, days: int | None = None):") {
		t.Errorf("expected required-before-optional signature, got:\n%s", code)
	}
	if !strings.Contains(code, `MFP_WEATHER_BASE_URL`) {
		t.Errorf("expected credential env var reference, got:\n%s", code)
	}
	if strings.Contains(code, "MFP_WEATHER_AUTH\") +") {
		t.Errorf("auth token must not be embedded directly into source")
	}
}

func TestBuildSignatureOrdersBodyLast(t *testing.T) {
	required := []model.ParamSchema{{Name: "id", Type: model.TypeString, Required: true}}
	optional := []model.ParamSchema{{Name: "flag", Type: model.TypeBoolean}}
	sig := buildSignature(required, optional, true)
	if !strings.HasSuffix(sig, "json_body: dict | None = None") {
		t.Errorf("expected json_body last in signature, got %q", sig)
	}
}
