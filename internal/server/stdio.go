package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/metatools"
)

// stdioRequest is one line of the stdio transport: a tool name plus its
// JSON args object.
type stdioRequest struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ServeStdio reads newline-delimited requests from in and writes one
// JSON result line per request to out, until in reaches EOF or ctx is
// cancelled. A malformed request line produces an in-band error line;
// the loop itself never fails on bad input.
func ServeStdio(ctx context.Context, manager *metatools.Manager, logger *zap.Logger, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req stdioRequest
		var result string
		if err := json.Unmarshal(line, &req); err != nil || req.Tool == "" {
			raw, _ := json.Marshal(map[string]string{"error": "each line must be {\"tool\": ..., \"args\": {...}}", "error_type": "internal"})
			result = string(raw)
		} else {
			result = manager.Dispatch(ctx, req.Tool, string(req.Args))
		}

		if _, err := writer.WriteString(result + "\n"); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error("stdio_transport_read_failed", zap.Error(err))
		return err
	}
	return nil
}
