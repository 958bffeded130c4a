// Package servecmder provides the serve command, which runs the research API
// server with its MCP endpoint.
package servecmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/api"
	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/logger"
)

const serveLongDesc string = `Run the research API server.

The server answers over HTTP:
  GET  /ping          health check
  GET  /v1/stats      chunk and vector counts, models in use
  GET  /v1/search     ?query=...&top_k=n ranked chunks
  POST /v1/ask        {"question": "...", "top_k": n} cited answer

An MCP server exposing the search and ask tools is mounted at /mcp over
streamable HTTP unless --no-mcp is given.

Examples:
  researcher serve
  researcher serve --listen :9000 --json-logs
  researcher serve --log-file serve.log`

const serveShortDesc string = "Run the research API server"

// Flags are the registry flags of the serve command.
var Flags = append(append([]string{}, stack.QueryFlags...), config.FlagAPIListen)

type serveCommander struct {
	flags    stack.Flags
	listen   string
	noMCP    bool
	jsonLogs bool
	logFile  string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmder.flags.AddQueryFlags(cmd)
	config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &cmder.listen)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log JSON lines instead of pretty output")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug, _ := cmd.Flags().GetBool("debug")

	var logFile io.Writer
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logFile = f
	}
	log := NewLogger(cmd.ErrOrStderr(), logFile, debug, c.jsonLogs)

	s, err := stack.OpenForCommand(ctx, cmd, Flags, log)
	if err != nil {
		return err
	}
	defer s.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: s.Config.API.Listen,
		TopK:       int(s.Config.Research.TopK),
		DisableMCP: c.noMCP,
	}, s.DB, s.Researcher, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("received signal, shutting down")
		return server.Shutdown()
	}
}

// NewLogger logs to w, pretty unless jsonLogs is set. When logFile is non-nil
// every record is also written to it as JSON.
func NewLogger(w, logFile io.Writer, debug, jsonLogs bool) *slog.Logger {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(jsonLogs),
		logger.WithPretty(!jsonLogs),
		logger.WithWriter(w),
	)
	if logFile == nil {
		return log
	}
	return logger.Multi(log, logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(logFile),
	))
}
