// Package main runs the dbconn-mcp server: an MCP server that manages named
// database connections (register, clone, open, close) and exposes session
// introspection without exposing credentials.
package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SedlarDavid/dbconn-mcp/internal/config"
	"github.com/SedlarDavid/dbconn-mcp/internal/db"
	mcpserver "github.com/SedlarDavid/dbconn-mcp/internal/server"
)

func main() {
	// Stdout carries the MCP protocol; logs go to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	reg := db.NewRegistry()
	cfg.Seed(reg)

	err = server.ServeStdio(mcpserver.New(reg))
	reg.CloseAll()
	if err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
