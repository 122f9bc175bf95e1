// formpilot: PDF form auto-fill MCP server
//
// Reads an email described as JSON, downloads its PDF form, invents
// realistic values for the form fields with a language model, normalizes
// them for the form's conventions and writes the filled PDF.
//
// Usage:
//
//	formpilot serve           # Start MCP server (stdio transport)
//	formpilot serve --http    # Start MCP server (streamable HTTP)
//	formpilot process <url>   # Run the automation once and print the result
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/formpilot/internal/config"
	"github.com/HendryAvila/formpilot/internal/logging"
	fpserver "github.com/HendryAvila/formpilot/internal/server"
	"github.com/HendryAvila/formpilot/internal/updater"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "formpilot",
		Short:         "PDF form auto-fill MCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `formpilot fills the PDF form attached to an email with generated values.

Configuration comes from FORMPILOT_* environment variables or a .env file
in the working directory. OPENAI_API_KEY enables value generation.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "formpilot": {
        "command": "formpilot",
        "args": ["serve"]
      }
    }
  }`,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newProcessCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// setup loads configuration and the logger shared by every command.
func setup() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return cfg, logger, nil
}

func newServeCommand() *cobra.Command {
	var useHTTP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if useHTTP {
				cfg.Server.Transport = config.TransportHTTP
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve streamable HTTP instead of stdio")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	s, cleanup, err := fpserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check; logs go to stderr so they don't interfere
	// with MCP's stdio transport on stdout.
	go checkForUpdates(logger)

	if cfg.Server.Transport != config.TransportHTTP {
		return server.ServeStdio(s)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewStreamableHTTPServer(s, server.WithStateLess(true))
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", "addr", cfg.Server.Addr())
		errCh <- httpServer.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func newProcessCommand() *cobra.Command {
	var withPDF bool
	cmd := &cobra.Command{
		Use:   "process <email-json-url>",
		Short: "Fill the PDF form attached to an email and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			c, cleanup, err := fpserver.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := c.Runner.Process(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !withPDF {
				res.PDFBase64 = ""
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&withPDF, "base64", false, "Include the filled PDF as base64 in the output")
	return cmd
}

func newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "formpilot v%s\n", fpserver.Version)
			if !check {
				return nil
			}
			res := updater.New("").Check(cmd.Context(), fpserver.Version)
			switch {
			case res.UpdateAvailable:
				fmt.Fprintf(cmd.OutOrStdout(), "Update available: v%s -> v%s\n%s\n",
					res.CurrentVersion, res.LatestVersion, res.ReleaseURL)
			case res.LatestVersion == "":
				fmt.Fprintln(cmd.OutOrStdout(), "Could not reach the release server")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Already at the latest version")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}

// checkForUpdates runs a best-effort version check and logs a notice if an
// update is available.
func checkForUpdates(logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res := updater.New("").Check(ctx, fpserver.Version)
	if res.UpdateAvailable {
		logger.Info("update available",
			"current", res.CurrentVersion,
			"latest", res.LatestVersion,
			"release", res.ReleaseURL,
		)
	}
}
