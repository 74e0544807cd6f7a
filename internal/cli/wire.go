package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/embed"
	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/plugin"
	"github.com/ayusman/handsoff/internal/server"
	"github.com/ayusman/handsoff/internal/store"
)

// instance is the fully wired application.
type instance struct {
	cfg     *config.Config
	app     *app.App
	journal *store.Store
	server  *server.Server
}

// newInstance builds every component from cfg and opens the camera. A missing
// camera is returned as an error wrapping capture.ErrCameraUnavailable.
func newInstance(cfg *config.Config, serverCfg server.Config) (*instance, error) {
	metric, err := gesture.ParseMetric(cfg.Classifier.Metric)
	if err != nil {
		return nil, err
	}

	journal, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	embedder, err := embed.NewDNN(embed.Config{
		Model:       cfg.Embedder.Model,
		ModelConfig: cfg.Embedder.Config,
		OutputLayer: cfg.Embedder.OutputLayer,
		InputSize:   cfg.Embedder.InputSize,
		Scale:       cfg.Embedder.Scale,
		Mean:        cfg.Embedder.Mean,
		SwapRB:      cfg.Embedder.SwapRB,
	})
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("failed to load embedder: %w", err)
	}

	var frames *capture.FrameMailbox
	if cfg.Server.Stream {
		frames = capture.NewFrameMailbox()
	}

	player, notifier := newSinks(cfg.Alert)
	a := app.New(app.Config{
		Camera: capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.Device,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		}),
		Embedder: embedder,
		Examples: gesture.NewExampleStore(cfg.Classifier.K, metric),
		Training: gesture.TrainerConfig{
			Repetitions: cfg.Training.Repetitions,
			Interval:    cfg.Training.Interval,
		},
		Threshold:   cfg.Classifier.ConfidenceThreshold,
		RunInterval: cfg.Classifier.RunInterval,
		Player:      player,
		Notifier:    notifier,
		Alert: alert.Config{
			Title:      cfg.Alert.Title,
			Body:       cfg.Alert.Body,
			RearmAfter: cfg.Alert.SilentCooldown,
		},
		Journal: journal,
		Frames:  frames,
	})

	if err := a.Open(); err != nil {
		a.Close()
		journal.Close()
		return nil, err
	}

	serverCfg.StaticDir = cfg.Server.StaticDir
	serverCfg.Store = journal
	serverCfg.App = a
	serverCfg.Frames = frames
	srv := server.New(serverCfg)
	a.Subscribe(srv.Hub().Publish)

	return &instance{cfg: cfg, app: a, journal: journal, server: srv}, nil
}

// Close releases the camera, the embedder and the journal.
func (r *instance) Close() {
	if err := r.app.Close(); err != nil {
		log.WithError(err).Warn("failed to close app")
	}
	if err := r.journal.Close(); err != nil {
		log.WithError(err).Warn("failed to close journal")
	}
}

// newSinks selects the alert sinks. Actions no discovered plugin supports
// fall back to a silent player and log notifications.
func newSinks(cfg config.AlertConfig) (alert.Player, alert.Notifier) {
	manager := plugin.NewManager(cfg.PluginDir)
	if err := manager.Discover(); err != nil {
		log.WithError(err).Warn("plugin discovery failed")
	}
	sink := alert.NewPluginSink(manager, plugin.NewExecutor(cfg.Timeout), cfg.Plugin, cfg.Sound)

	var player alert.Player = alert.SilentPlayer{Cooldown: cfg.SilentCooldown}
	if p, err := manager.Find(cfg.Plugin, plugin.ActionPlaySound); err == nil {
		player = sink
		if _, err := os.Stat(cfg.Sound); err != nil {
			log.WithField("sound", cfg.Sound).Warn("alert sound not found, playback will fail")
		}
		log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "sound": cfg.Sound}).Info("alert sound enabled")
	} else {
		log.WithField("dir", cfg.PluginDir).Warn("no sound plugin found, alerts will be silent")
	}

	var notifier alert.Notifier = alert.LogNotifier{}
	if p, err := manager.Find(cfg.Plugin, plugin.ActionNotify); err == nil {
		notifier = sink
		log.WithField("plugin", p.Manifest.Name).Info("desktop notifications enabled")
	}

	return player, alert.NewThrottledNotifier(notifier, cfg.NotifyCooldown)
}
