package metatools

import (
	"context"
	"encoding/json"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/mfperrors"
)

// GetCachedCodeTool surfaces previously successful programs so the LLM
// can reuse them instead of re-deriving code. A cache failure downgrades
// to an in-band "cache" error without affecting anything else.
type GetCachedCodeTool struct {
	cacheDB *cache.Store
}

func (t *GetCachedCodeTool) Name() string { return "get_cached_code" }

func (t *GetCachedCodeTool) Description() string {
	return "Search previously executed, successful programs by description. Reuse a cached program by re-submitting its code to execute_code."
}

func (t *GetCachedCodeTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "search": {"type": "string", "description": "Optional case-insensitive substring to match against descriptions"}
  }
}`
}

type getCachedCodeArgs struct {
	Search string `json:"search"`
}

type getCachedCodeResponse struct {
	CachedEntries []cache.SearchResult `json:"cached_entries"`
}

func (t *GetCachedCodeTool) Execute(_ context.Context, args string) (string, error) {
	var req getCachedCodeArgs
	if args != "" {
		if err := json.Unmarshal([]byte(args), &req); err != nil {
			return errorPayload("invalid arguments: "+err.Error(), string(mfperrors.KindInternal)), nil
		}
	}

	if t.cacheDB == nil {
		return marshal(getCachedCodeResponse{CachedEntries: []cache.SearchResult{}})
	}

	results, err := t.cacheDB.Search(req.Search, 50)
	if err != nil {
		return errorPayload(err.Error(), mfperrors.ErrorType(err)), nil
	}
	if results == nil {
		results = []cache.SearchResult{}
	}
	return marshal(getCachedCodeResponse{CachedEntries: results})
}
