package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/supportpilot/internal/api"
	"github.com/kalambet/supportpilot/internal/config"
	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/ingest"
	"github.com/kalambet/supportpilot/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the supportpilot HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running supportpilot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engines as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		build, _ := cmd.Flags().GetBool("build")
		return runMCP(build)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supportpilot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().Bool("build", false, "build the knowledge base from the configured seeds on start")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "supportpilot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "supportpilot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("supportpilot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("supportpilot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	// Local models are pulled before the first request needs them.
	if cfg.LLM.Provider == config.ProviderOllama {
		if err := engine.EnsureReady(ctx, a.backend, a.models(), os.Stderr); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	worker := ingest.NewWorker(store, a.builder, 500*time.Millisecond)
	go worker.Run(ctx)

	if cfg.Knowledge.BuildOnStart {
		if seeds := a.seeds(); len(seeds) > 0 {
			id, err := ingest.EnqueueBuild(store, seeds)
			if err != nil {
				return err
			}
			slog.Info("knowledge build queued", "job_id", id, "seeds", len(seeds))
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(a.apiDeps(store)),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "supportpilot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("supportpilot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop supportpilot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to supportpilot (PID %d)", pid)
	return nil
}

// runMCP serves the engines over stdio. Stdout carries the protocol, so
// all logging goes to stderr.
func runMCP(build bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	if build {
		go func() {
			stats := a.builder.Build(ctx, a.seeds())
			slog.Info("knowledge base ready", "indexed", stats.Indexed, "duration_ms", stats.DurationMs)
		}()
	}

	mcpSrv := api.NewMCPServer(a.apiDeps(store), version)
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := clientFor(cfg)
	client.httpClient = &http.Client{Timeout: 2 * time.Second}
	running := printServerStatus(ctx, client, cfg.Server.Port)

	printStatus("Provider", "%s", cfg.LLM.Provider)
	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Answer model", "%s", cfg.LLM.AnswerModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)

	if running {
		printServerCounts(ctx, client)
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// printServerStatus reports whether the server answers its health check.
func printServerStatus(ctx context.Context, client *apiClient, port int) bool {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return false
	}
	printStatus("Server", "running on port %d", port)
	return true
}

// printServerCounts reports the index size and ticket history size. Failed
// lookups are skipped.
func printServerCounts(ctx context.Context, client *apiClient) {
	if resp, err := client.get(ctx, "/v1/knowledge/documents"); err == nil {
		var docs struct {
			Count int `json:"count"`
		}
		if decodeJSON(resp, &docs) == nil {
			printStatus("Indexed docs", "%d", docs.Count)
		}
	}
	if resp, err := client.get(ctx, "/v1/tickets/stats"); err == nil {
		var stats storage.Stats
		if decodeJSON(resp, &stats) == nil {
			printStatus("Tickets", "%d", stats.Total)
		}
	}
}
