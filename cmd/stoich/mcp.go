package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/njchilds90/stoich/internal/metrics"
	"github.com/njchilds90/stoich/internal/tools"
)

const serverVersion = "0.1.0"

func newMCPCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the stoich tools over the Model Context Protocol",
		Long: `Runs an MCP server exposing solve, balance, convert, variables and
assumptions as tools.

The server runs in one of two modes:
- stdio: communicates over standard input and output
- http: serves the streamable HTTP transport on --address at /mcp

With --metrics-address, Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.runMCP(); err != nil {
				return errors.WithMessage(err, "error running MCP server")
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("mode", "stdio", "Transport: stdio or http")
	flags.String("address", ":8080", "Listen address in http mode")
	flags.String("metrics-address", "", "Listen address for Prometheus metrics; empty disables them")
	o.bind(flags, map[string]string{
		"mcp.mode":        "mode",
		"mcp.address":     "address",
		"metrics.address": "metrics-address",
	})
	return cmd
}

// newMCPServer registers one MCP tool per dispatcher tool.
func newMCPServer(d *tools.Dispatcher, log logrus.FieldLogger) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		log.WithField("session_id", session.SessionID()).Info("MCP client session registered")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		log.WithField("session_id", session.SessionID()).Info("MCP client session unregistered")
	})

	s := server.NewMCPServer(
		"stoich",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)
	for _, spec := range tools.Specs() {
		opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
		for _, p := range spec.Params {
			popts := []mcp.PropertyOption{mcp.Description(p.Description)}
			if p.Required {
				popts = append(popts, mcp.Required())
			}
			switch p.Type {
			case "integer", "number":
				opts = append(opts, mcp.WithNumber(p.Name, popts...))
			default:
				opts = append(opts, mcp.WithString(p.Name, popts...))
			}
		}
		name := spec.Name
		s.AddTool(mcp.NewTool(name, opts...), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if ctx.Err() != nil {
				return mcp.NewToolResultError("request cancelled"), nil
			}
			resp := d.Handle(tools.Request{Tool: name, Params: request.GetArguments()})
			if resp.Error != "" {
				return mcp.NewToolResultError(resp.Error), nil
			}
			return mcp.NewToolResultText(resp.String), nil
		})
		log.WithField("tool", name).Debug("Registered tool")
	}
	return s
}

func (o *rootOptions) runMCP() error {
	mode, addr := o.cfg.MCP.Mode, o.cfg.MCP.Address
	log := o.log.WithFields(logrus.Fields{"mode": mode, "listen_address": addr})
	log.Info("Initializing MCP server")

	recorder := metrics.NewRecorder()
	dopts := []tools.Option{tools.WithLogger(o.log), tools.WithRecorder(recorder)}
	if o.cfg.Resources.Assumptions != "" {
		dopts = append(dopts, tools.WithAssumptionFile(o.cfg.Resources.Assumptions))
	}
	mcpServer := newMCPServer(tools.New(o.bank, dopts...), o.log)

	if o.cfg.Metrics.Address != "" {
		metricsServer := recorder.Listen(o.cfg.Metrics.Address, o.log)
		defer shutdown(metricsServer, o.log)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	var stop func(context.Context) error
	switch mode {
	case "stdio":
		log.Info("Starting stdio MCP server")
		go func() { errChan <- server.ServeStdio(mcpServer) }()
	case "http":
		httpServer := server.NewStreamableHTTPServer(mcpServer)
		stop = httpServer.Shutdown
		log.WithField("endpoint", fmt.Sprintf("http://localhost%s/mcp", addr)).Info("Starting HTTP MCP server")
		go func() { errChan <- httpServer.Start(addr) }()
	default:
		return errors.Errorf("unsupported mode: %s", mode)
	}

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("MCP server failed")
			return err
		}
		log.Info("MCP server terminated normally")
		return nil
	case sig := <-sigChan:
		log.WithField("signal", sig).Info("Received signal, shutting down MCP server")
		if stop != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stop(ctx); err != nil {
				log.WithError(err).Error("Error during graceful shutdown")
			}
		}
		return nil
	}
}

func shutdown(s *http.Server, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Metrics server shutdown failed")
	}
}
