// Package server builds the MCP server and registers the connection
// lifecycle tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/SedlarDavid/dbconn-mcp/internal/db"
)

const (
	ServerName    = "dbconn-mcp"
	ServerVersion = "1.0.0"
)

// New returns an MCP server with all tools registered. reg may be nil (only
// ping and list_connections work without a registry).
func New(reg *db.Registry) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion)
	Register(s, reg)
	return s
}

// Register adds all tools to s. Split from New so tests can register onto
// their own server instance.
func Register(s *server.MCPServer, reg *db.Registry) {
	s.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Simple health check. Returns pong."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(PingOutput{Message: "pong"})
	})

	s.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List connection targets registered under a key and their types. No credentials in response."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := ListConnectionsOutput{}
		if reg != nil {
			for target, info := range reg.Infos(req.GetString("key", db.DefaultKey)) {
				out.Connections = append(out.Connections, ConnectionInfo{Target: target, Type: info.Type})
			}
		}
		return jsonResult(out)
	})

	if reg == nil {
		return
	}

	s.AddTool(mcp.NewTool("register_connection",
		mcp.WithDescription("Register or overwrite the configuration for a key/target slot. Validated at open time."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name within the key (default: default).")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Driver type: postgres, mysql, sqlite or sqlserver.")),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Connection URI/DSN. Never echoed back.")),
		mcp.WithObject("options", mcp.Description("Driver session options applied at open.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typ, err := req.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		uri, err := req.RequireString("uri")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reg.Add(req.GetString("key", ""), req.GetString("target", ""), db.ConnInfo{
			Type:    typ,
			URI:     uri,
			Options: stringOptions(req.GetArguments()["options"]),
		})
		return jsonResult(OKOutput{OK: true})
	})

	s.AddTool(mcp.NewTool("clone_connection",
		mcp.WithDescription("Copy the configuration of one target to another target under the same key, with optional option overrides."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("from_target", mcp.Description("Source target (default: default).")),
		mcp.WithString("to_target", mcp.Required(), mcp.Description("Destination target.")),
		mcp.WithObject("options", mcp.Description("Option overrides applied to the copy.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		to, err := req.RequireString("to_target")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		err = reg.Clone(req.GetString("key", ""), req.GetString("from_target", ""), to,
			stringOptions(req.GetArguments()["options"]))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(OKOutput{OK: true})
	})

	s.AddTool(mcp.NewTool("remove_connection",
		mcp.WithDescription("Close the slot's open connection, if any, then delete its configuration."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name (default: default).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg.Remove(req.GetString("key", ""), req.GetString("target", ""))
		return jsonResult(OKOutput{OK: true})
	})

	s.AddTool(mcp.NewTool("open_connection",
		mcp.WithDescription("Open (or return the already-open) connection for a slot and report its server session ID."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name (default: default).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := reg.Get(ctx, req.GetString("key", ""), req.GetString("target", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, err := d.SessionID(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(SessionOutput{SessionID: id})
	})

	s.AddTool(mcp.NewTool("close_connection",
		mcp.WithDescription("Close the slot's connection and evict it. Idempotent; a later open gets a fresh session."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name (default: default).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg.Close(req.GetString("key", ""), req.GetString("target", ""))
		return jsonResult(OKOutput{OK: true})
	})

	s.AddTool(mcp.NewTool("session_id",
		mcp.WithDescription("Return the server session ID of a slot's connection, opening it if needed."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name (default: default).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := reg.Get(ctx, req.GetString("key", ""), req.GetString("target", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, err := d.SessionID(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(SessionOutput{SessionID: id})
	})

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List active server session IDs, observed through a dedicated monitoring connection built from the slot's configuration."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target whose configuration the monitor uses (default: monitor).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, ok := reg.Info(req.GetString("key", ""), req.GetString("target", "monitor"))
		if !ok {
			return mcp.NewToolResultError(db.ErrNotConfigured.Error()), nil
		}
		mon, err := db.NewMonitor(ctx, info)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open monitor: %v", err)), nil
		}
		defer mon.Close()
		set, err := mon.Sessions(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out := ListSessionsOutput{Sessions: make([]int64, 0, len(set))}
		for id := range set {
			out.Sessions = append(out.Sessions, id)
		}
		return jsonResult(out)
	})

	s.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a read-only SQL query (SELECT only) on a slot's connection. Rejects INSERT/UPDATE/DELETE/DDL. Params are positional ($1, $2)."),
		mcp.WithString("key", mcp.Description("Connection key group (default: default).")),
		mcp.WithString("target", mcp.Description("Target name (default: default).")),
		mcp.WithString("sql", mcp.Required(), mcp.Description("The SELECT statement.")),
		mcp.WithArray("params", mcp.Description("Positional parameters.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := ValidateReadOnlySQL(sqlText); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d, err := reg.Get(ctx, req.GetString("key", ""), req.GetString("target", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		params, _ := req.GetArguments()["params"].([]any)
		rows, err := d.Query(ctx, sqlText, params)
		if err != nil {
			// Query failures do not evict the connection: a failed query
			// does not mean a dead session.
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(RunQueryOutput{Rows: rows})
	})
}

// stringOptions converts a decoded JSON object into option key/value pairs.
func stringOptions(v any) map[string]string {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, val := range obj {
		out[k] = fmt.Sprint(val)
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// PingOutput is the structured result of the ping tool.
type PingOutput struct {
	Message string `json:"message"`
}

// ConnectionInfo is safe to return to tools: no credentials.
type ConnectionInfo struct {
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ListConnectionsOutput is the result of list_connections.
type ListConnectionsOutput struct {
	Connections []ConnectionInfo `json:"connections"`
}

// OKOutput is the result of tools that only acknowledge.
type OKOutput struct {
	OK bool `json:"ok"`
}

// SessionOutput is the result of open_connection and session_id.
type SessionOutput struct {
	SessionID int64 `json:"session_id"`
}

// ListSessionsOutput is the result of list_sessions.
type ListSessionsOutput struct {
	Sessions []int64 `json:"sessions"`
}

// RunQueryOutput is the result of run_query.
type RunQueryOutput struct {
	Rows []map[string]any `json:"rows"`
}
