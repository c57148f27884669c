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

	"github.com/kalambet/tonegate/internal/api"
	"github.com/kalambet/tonegate/internal/config"
	"github.com/kalambet/tonegate/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API and the MCP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runServer(a, withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tonegate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tonegate status and the backend endpoints in use",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		return showStatus(cmd.OutOrStdout(), a)
	}),
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "also serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tonegate.pid")
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

func runServer(a *app, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "tonegate version %s\n", version)
	cfg := a.cfg

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Token == "" {
		slog.Warn("server.token is not set, the local API accepts unauthenticated requests")
	}

	deps := api.Deps{
		Router:    a.router,
		Profiles:  a.profiles,
		Identity:  a.identity,
		Store:     a.store,
		Token:     cfg.Server.Token,
		CompanyID: cfg.Ingest.CompanyID,
		Logger:    a.logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tonegate listening", "addr", addr, "gateway", cfg.Gateway.BaseURL)
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
		return fmt.Errorf("could not load config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("tonegate is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop tonegate (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to tonegate (PID %d)", pid)
	return nil
}

func showStatus(w io.Writer, a *app) error {
	cfg := a.cfg
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Any HTTP answer means the backend is reachable; it has no health route.
	base := a.router.BaseURL()
	gwResp, err := client.Get(base)
	if err != nil {
		printStatus("Gateway", "unreachable at %s", base)
	} else {
		gwResp.Body.Close()
		printStatus("Gateway", "reachable at %s", base)
	}

	if cfg.Ingest.CompanyID != "" {
		printStatus("Company", "%s", cfg.Ingest.CompanyID)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	fmt.Fprintln(w, colorize(colorBold, "Endpoints"))
	for _, c := range gateway.Capabilities() {
		method, path, _ := gateway.Route(c)
		fmt.Fprintf(w, "  %-22s %-5s %s%s\n", c, method, base, path)
	}
	return nil
}
