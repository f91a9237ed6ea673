package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bedlam520/hype-bridge/internal/conf"
	"github.com/bedlam520/hype-bridge/internal/mcp"
)

// version is set at build time
var version = "dev"

// This MCP server speaks stdio to the MCP client and relays tool calls to
// the hype bridge admin API.
func main() {
	if err := conf.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}
	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol
	log := cfg.Logger(os.Stderr).With().Str("component", "mcp").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := mcp.NewClient(cfg.APIURL())
	log.Info().Str("api", cfg.APIURL()).Msg("Starting MCP server")
	if err := mcp.NewServer(client, version).Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("MCP server stopped")
		os.Exit(1)
	}
}
