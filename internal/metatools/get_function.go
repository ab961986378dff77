package metatools

import (
	"context"
	"encoding/json"

	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/registry"
)

// GetFunctionTool is the per-function introspection operation: parameters,
// response fields, an import statement, and the generated source snippet.
// A missing server or function yields an in-band {error, error_type}
// payload rather than a raised error.
type GetFunctionTool struct {
	reg *registry.Registry
}

func (t *GetFunctionTool) Name() string { return "get_function" }

func (t *GetFunctionTool) Description() string {
	return "Inspect one function of one server: its parameters, response fields, import statement, and source. Call this before writing code that uses the function."
}

func (t *GetFunctionTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "server_name": {"type": "string", "description": "Server name from list_servers"},
    "function_name": {"type": "string", "description": "Function name from list_servers"}
  },
  "required": ["server_name", "function_name"]
}`
}

type getFunctionArgs struct {
	ServerName   string `json:"server_name"`
	FunctionName string `json:"function_name"`
}

func (t *GetFunctionTool) Execute(_ context.Context, args string) (string, error) {
	var req getFunctionArgs
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return errorPayload("invalid arguments: "+err.Error(), string(mfperrors.KindInternal)), nil
	}

	info, err := t.reg.GetFunction(req.ServerName, req.FunctionName)
	if err != nil {
		return errorPayload(err.Error(), mfperrors.ErrorType(err)), nil
	}
	return marshal(info)
}
