package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codelens/internal/api"
	"github.com/joescharf/codelens/internal/daemon"
	"github.com/joescharf/codelens/internal/output"
)

const (
	shutdownTimeout = 30 * time.Second
	stopTimeout     = 10 * time.Second
	startTimeout    = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API in the foreground",
	Long: `Run the review, conversation, document and auth API in the foreground.

The server refuses to start unless the provider API key, model, database URL
and JWT secret are configured. Use 'codelens serve start' to run it in the
background instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().String("host", "", "interface to listen on (default 127.0.0.1)")
	serveCmd.PersistentFlags().IntP("port", "p", 0, "port to listen on (default 8000)")
	_ = viper.BindPFlag("server.host", serveCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file of the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "codelens-serve.pid"))
}

// serveLogPath is where a background server's stdout and stderr go.
func serveLogPath() string {
	return filepath.Join(stateDir(), "codelens-serve.log")
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	if err := a.openEvents(); err != nil {
		return err
	}
	if err := a.openLLM(ctx); err != nil {
		return err
	}
	if err := a.openDocs(ctx); err != nil {
		return err
	}
	if err := a.openUsers(ctx); err != nil {
		return err
	}

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Remove() }()

	srv := api.NewServer(a.reviewer, a.rag, a.auth, a.events, a.healthChecker(), a.logger, api.Options{
		Version:        buildVersion,
		Provider:       a.client.Provider(),
		Model:          a.client.Model(),
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving", "addr", "http://"+httpServer.Addr, "provider", a.client.Provider(), "model", a.client.Model(), "pid", os.Getpid())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// serveStartRun re-executes the binary as 'serve' detached from the terminal
// and waits until the child has claimed the PID file.
func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	if dryRun {
		ui.DryRunMsg("Would start server in background (log: %s)", serveLogPath())
		return nil
	}

	if err := ensureStateDir(); err != nil {
		return err
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve"}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if h := viper.GetString("server.host"); h != "" {
		args = append(args, "--host", h)
	}
	if p := viper.GetInt("server.port"); p > 0 {
		args = append(args, "--port", fmt.Sprint(p))
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()

	deadline := time.After(startTimeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-exited:
			return fmt.Errorf("server exited during startup (%v); see %s", err, serveLogPath())
		case <-deadline:
			ui.Warning("Server started (pid %d) but has not written its PID file yet; see %s", child.Process.Pid, serveLogPath())
			return nil
		case <-tick.C:
			if pid, err := pf.Read(); err == nil && pid == child.Process.Pid {
				ui.Success("Server started (pid %d) on http://%s", pid, viperAddr())
				ui.VerboseLog("Log: %s", serveLogPath())
				return nil
			}
		}
	}
}

// serveStopRun sends SIGTERM and escalates to SIGKILL if the server does not
// exit in time.
func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	if !pf.WaitExit(stopTimeout) {
		ui.Warning("Server did not exit after %s, killing", stopTimeout)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill server: %w", err)
		}
		pf.WaitExit(stopTimeout)
	}
	_ = pf.Remove()
	ui.Success("Server stopped (pid %d)", pid)
	return nil
}

// serveStatusRun reports the PID and, when reachable, the server's health.
func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		if pid != 0 {
			ui.Warning("Removing stale PID file (pid %d)", pid)
			_ = pf.Remove()
		}
		ui.Info("Server not running")
		return nil
	}

	ui.Success("Server running (pid %d)", pid)
	ui.VerboseLog("Log: %s", serveLogPath())

	h, err := fetchHealth(viperAddr())
	if err != nil {
		ui.Warning("Health check failed: %v", err)
		return nil
	}
	ui.Info("Health: %s (version %s)", output.HealthColor(h.Status), h.Version)
	return nil
}

func viperAddr() string {
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, viper.GetInt("server.port"))
}

type healthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// fetchHealth queries the public /health endpoint of a running server.
func fetchHealth(addr string) (*healthStatus, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	var h healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &h, nil
}
