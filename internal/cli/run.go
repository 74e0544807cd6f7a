package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/server"
	"github.com/ayusman/handsoff/internal/tray"
)

// NewRunCmd creates the 'run' command: tray controls plus the local server.
func NewRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run with tray controls and the local server",
		Long: `Open the camera, load the embedding network and show the tray menu.

Use "Train: not touching" first, then "Train: touching", then "Run".
The same controls are served on the local HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg, cfg.Tray.Enabled)
		},
	}
	return cmd
}

// NewServeCmd creates the 'serve' command: the local server without a tray.
func NewServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless, controlled over the local HTTP API",
		Example: `  handsoff serve
  curl -X POST localhost:8420/api/train -d '{"label":"not_touching"}'
  curl -X POST localhost:8420/api/train -d '{"label":"touching"}'
  curl -X POST localhost:8420/api/run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg, false)
		},
	}
	return cmd
}

// runApp serves until SIGINT/SIGTERM, or until Quit when withTray is set.
func runApp(ctx context.Context, cfg *config.Config, withTray bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newInstance(cfg, server.Config{Context: ctx})
	if err != nil {
		if errors.Is(err, capture.ErrCameraUnavailable) {
			return fmt.Errorf("cannot start without a camera: %w", err)
		}
		return err
	}
	defer rt.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- rt.server.ListenAndServe(ctx, cfg.Server.Addr) }()

	if !withTray {
		return <-serveErr
	}

	t := newTray(ctx, rt, stop)
	rt.app.Subscribe(t.HandleEvent)
	go func() {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			serveErr <- err
		}
		t.Quit()
	}()

	t.Run()
	stop()
	return <-serveErr
}

// newTray wires the tray menu to the App. Quit cancels ctx through quit.
func newTray(ctx context.Context, rt *instance, quit func()) *tray.Tray {
	t := tray.New()
	t.OnTrain(func(label gesture.Label) {
		added, err := rt.app.Train(ctx, label, 0)
		if err != nil {
			log.WithError(err).WithField("label", label).Warn("training failed")
			return
		}
		log.WithFields(logrus.Fields{"label": label, "added": added}).Info("training complete")
	})
	t.OnRun(func() {
		if err := rt.app.StartRun(ctx); err != nil {
			log.WithError(err).Warn("failed to start")
		}
	})
	t.OnStop(func() {
		if err := rt.app.StopRun(); err != nil {
			log.WithError(err).Warn("failed to stop")
		}
	})
	t.OnDashboard(func() {
		if err := openBrowser(dashboardURL(rt.cfg.Server.Addr)); err != nil {
			log.WithError(err).Warn("failed to open dashboard")
		}
	})
	t.OnQuit(quit)
	return t
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
