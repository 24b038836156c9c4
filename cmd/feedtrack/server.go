package main

import (
	"context"
	"errors"
	"fmt"
	"io"
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
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/feedtrack/internal/api"
	"github.com/kalambet/feedtrack/internal/assistant"
	"github.com/kalambet/feedtrack/internal/config"
	"github.com/kalambet/feedtrack/internal/feedback"
	"github.com/kalambet/feedtrack/internal/proxy"
	"github.com/kalambet/feedtrack/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the feedtrack server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running feedtrack server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feedtrack server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "feedtrack.pid")
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

// openStore returns the configured feedback store and a function releasing it.
func openStore(ctx context.Context, cfg config.StorageConfig) (feedback.Store, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		s := storage.NewFileStore(filepath.Join(cfg.DataDir, storage.FeedbackFile))
		if err := s.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("initializing %s: %w", s.Path(), err)
		}
		return s, func() error { return nil }, nil
	}
}

func healthURL(cfg config.Config) string {
	return "http://" + cfg.Server.Addr() + "/api/health"
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "feedtrack version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	// Refuse to start twice on the same address.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL(cfg)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("feedtrack is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("feedtrack is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()
	slog.Info("storage ready", "backend", cfg.Storage.Backend, "data_dir", cfg.Storage.DataDir)

	svc := feedback.NewService(store, feedback.WithLogger(slog.Default().With("component", "feedback")))

	proxyClient := proxy.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Timeout)
	asst := assistant.FromClient(proxyClient, cfg.AI.Model)
	if !proxyClient.HasKey() {
		slog.Warn("AI API key not configured; /api/ai/ask will fail until FEEDTRACK_AI_API_KEY or OPENAI_API_KEY is set")
	}
	if cfg.Server.APIToken != "" {
		slog.Info("bearer token auth enabled")
	}

	handler := api.NewHandler(api.Deps{
		Feedback:      svc,
		Assistant:     asst,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Token:         cfg.Server.APIToken,
		Logger:        slog.Default(),
	})

	var mcpSrv *server.MCPServer
	if withMCP {
		mcpSrv = api.NewMCPServer(api.MCPDeps{
			Feedback:  svc,
			Assistant: asst,
			Version:   version,
		})
	}

	return serve(ctx, cfg.Server.Addr(), handler, mcpSrv, os.Stdin, os.Stdout)
}

// serve runs the HTTP server, and the MCP stdio server when mcpSrv is
// non-nil, until ctx is cancelled or one of them fails.
func serve(ctx context.Context, addr string, handler http.Handler, mcpSrv *server.MCPServer, in io.Reader, out io.Writer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return gctx
		},
	}

	g.Go(func() error {
		slog.Info("feedtrack listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if mcpSrv != nil {
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
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
		printError("feedtrack is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop feedtrack (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to feedtrack (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(healthURL(cfg))
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s", cfg.Server.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}

	if cfg.AI.APIKey != "" {
		printStatus("AI", "%s via %s", cfg.AI.Model, cfg.AI.BaseURL)
	} else {
		printStatus("AI", "not configured")
	}

	if running {
		c := &apiClient{
			baseURL:    "http://" + cfg.Server.Addr() + "/api",
			token:      cfg.Server.APIToken,
			httpClient: client,
		}
		if resp, err := c.get(context.Background(), "/feedback/stats"); err == nil {
			var stats feedback.Stats
			if decodeJSON(resp, &stats) == nil {
				printStatus("Feedback", "%d total, %d open", stats.Total, stats.ByStatus[feedback.StatusOpen])
			}
		}
	}

	printStatus("Storage", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
