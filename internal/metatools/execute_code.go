package metatools

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/executor"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

// ExecuteCodeTool submits one program through the execution pipeline.
// Every typed pipeline failure (security, lint, timeout, execution,
// internal) is flattened to a {success:false, error, error_type} result;
// a cache store failure is logged by the executor and does not fail the
// call. Tracebacks appear only in debug mode.
type ExecuteCodeTool struct {
	cfg    *config.Config
	exec   *executor.Executor
	logger *zap.Logger
}

func (t *ExecuteCodeTool) Name() string { return "execute_code" }

func (t *ExecuteCodeTool) Description() string {
	return "Execute a Python program in an isolated sandbox. Import server functions with `from <server>.functions import <fn>`, then either define a nullary `main()` or bind a top-level `result`. Successful programs are cached for reuse."
}

func (t *ExecuteCodeTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "code": {"type": "string", "description": "The Python program to run"},
    "description": {"type": "string", "description": "A short human-readable label for what the program does"}
  },
  "required": ["code", "description"]
}`
}

type executeCodeArgs struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (t *ExecuteCodeTool) Execute(ctx context.Context, args string) (string, error) {
	var req executeCodeArgs
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return errorPayload("invalid arguments: "+err.Error(), string(mfperrors.KindInternal)), nil
	}

	start := time.Now()
	result, err := t.exec.Execute(ctx, req.Code, req.Description)
	if err != nil {
		result = failureResult(err, time.Since(start))
		if mfperrors.ErrorType(err) == string(mfperrors.KindInternal) {
			t.logger.Error("execute_code_internal_error", zap.Error(err))
		}
	}

	if !t.cfg.Debug {
		result.Traceback = ""
	}
	return marshal(result)
}

// failureResult maps a typed pipeline error onto the ExecutionResult
// wire shape, carrying lint output or stderr when the error has one.
func failureResult(err error, elapsed time.Duration) *model.ExecutionResult {
	result := &model.ExecutionResult{
		Success:         false,
		Error:           err.Error(),
		ErrorType:       mfperrors.ErrorType(err),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}

	var mfpErr *mfperrors.MFPError
	if mfperrors.AsMFPError(err, &mfpErr) {
		switch {
		case mfpErr.Output != "":
			result.Error = mfpErr.Message + ": " + mfpErr.Output
		case mfpErr.Stderr != "":
			result.Error = mfpErr.Message + ": " + mfpErr.Stderr
		}
	}
	return result
}
