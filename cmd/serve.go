package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/bugs/internal/api"
	"github.com/joescharf/bugs/internal/daemon"
)

const (
	shutdownTimeout = 10 * time.Second
	stopTimeout     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bug REST API server",
	Long: `Run the bug REST API in the foreground.

The server listens on server.port (default 5000) and serves /api/bugs,
/healthz and /metrics. Use 'bugs serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context(), viper.GetInt("server.port"))
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 5000, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "bugs-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "bugs-serve.log")
}

// serveRun serves the API until ctx is cancelled or a shutdown signal
// arrives, then drains in-flight requests.
func serveRun(ctx context.Context, port int) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	logger := newLogger(os.Stderr)

	s, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	pf := pidFile()
	if err := pf.Acquire(ln.Addr().String()); err != nil {
		_ = ln.Close()
		return err
	}
	defer func() { _ = pf.Release() }()

	srv := &http.Server{
		Handler:      api.NewServer(s, logger).Router(),
		ReadTimeout:  viper.GetDuration("server.read_timeout"),
		WriteTimeout: viper.GetDuration("server.write_timeout"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("bug server listening", "addr", ln.Addr().String(), "store", viper.GetString("store.driver"))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("bug server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// serveStartRun re-executes this binary as a detached `bugs serve` process
// whose output goes to the serve log.
func serveStartRun() error {
	pf := pidFile()
	if info, running := pf.IsRunning(); running {
		return fmt.Errorf("bug server already running (pid %d on %s)", info.PID, info.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("server.port"))}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open serve log: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	ui.Success("Bug server started (pid %d) on port %d", pid, viper.GetInt("server.port"))
	ui.Info("Logs: %s", logPath)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	info, running := pf.IsRunning()
	if !running {
		ui.Info("Bug server is not running")
		if info.PID != 0 {
			ui.Warning("Removing stale PID file for pid %d", info.PID)
			_ = pf.Remove()
		}
		return nil
	}

	ui.Success("Bug server running (pid %d on %s)", info.PID, info.Addr)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	info, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("bug server is not running")
	}

	ui.VerboseLog("Sending SIGTERM to pid %d", info.PID)
	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal pid %d: %w", info.PID, err)
	}

	if !pf.WaitExit(stopTimeout, 100*time.Millisecond) {
		ui.Warning("Server did not exit within %s, killing pid %d", stopTimeout, info.PID)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill pid %d: %w", info.PID, err)
		}
	}

	_ = pf.Remove()
	ui.Success("Bug server stopped")
	return nil
}
