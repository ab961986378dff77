package metatools

import (
	"context"

	"github.com/blackcoderx/mfp/internal/registry"
)

// ListServersTool answers "what APIs exist" with one row per compiled
// server and its function names/summaries.
type ListServersTool struct {
	reg *registry.Registry
}

func (t *ListServersTool) Name() string { return "list_servers" }

func (t *ListServersTool) Description() string {
	return "List every available API server with its callable function names and one-line summaries. Call this first to discover what you can use."
}

func (t *ListServersTool) Parameters() string {
	return `{"type": "object", "properties": {}}`
}

type listServersResponse struct {
	Servers []serverRow `json:"servers"`
}

type serverRow struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Functions   []functionRow `json:"functions"`
}

type functionRow struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

func (t *ListServersTool) Execute(_ context.Context, _ string) (string, error) {
	summaries := t.reg.ListServers()

	resp := listServersResponse{Servers: make([]serverRow, 0, len(summaries))}
	for _, s := range summaries {
		row := serverRow{Name: s.Name, Description: s.Description}
		for _, fn := range s.Functions {
			row.Functions = append(row.Functions, functionRow{Name: fn, Summary: s.Summaries[fn]})
		}
		resp.Servers = append(resp.Servers, row)
	}
	return marshal(resp)
}
