package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/handsoff/internal/plugin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "alert")

// Player plays the alert sound. Play returns once playback has started;
// done is called exactly once when it has finished. done is not called when
// Play returns an error.
type Player interface {
	Play(done func()) error
}

// Notifier shows a user-facing notification.
type Notifier interface {
	Notify(title, body string) error
}

// PluginSink delivers alerts through an alert plugin.
type PluginSink struct {
	manager   *plugin.Manager
	executor  *plugin.Executor
	preferred string
	sound     string
}

// NewPluginSink returns a sink that runs the preferred plugin, or any
// discovered plugin supporting the action, for each alert.
func NewPluginSink(manager *plugin.Manager, executor *plugin.Executor, preferred, sound string) *PluginSink {
	return &PluginSink{
		manager:   manager,
		executor:  executor,
		preferred: preferred,
		sound:     sound,
	}
}

// Play starts the play-sound action in the background. The plugin's exit,
// successful or not, is the end of playback.
func (s *PluginSink) Play(done func()) error {
	p, err := s.manager.Find(s.preferred, plugin.ActionPlaySound)
	if err != nil {
		return fmt.Errorf("play sound: %w", err)
	}

	go func() {
		defer done()
		req := &plugin.Request{Action: plugin.ActionPlaySound, Sound: s.sound}
		if err := s.executor.Run(context.Background(), p, req); err != nil {
			log.WithError(err).Warn("alert sound failed")
		}
	}()
	return nil
}

// Notify runs the notify action and waits for the plugin to exit.
func (s *PluginSink) Notify(title, body string) error {
	p, err := s.manager.Find(s.preferred, plugin.ActionNotify)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return s.executor.Run(context.Background(), p, &plugin.Request{
		Action: plugin.ActionNotify,
		Title:  title,
		Body:   body,
	})
}

// SilentPlayer plays nothing and reports playback finished after Cooldown.
type SilentPlayer struct {
	Cooldown time.Duration
}

// Play implements Player.
func (p SilentPlayer) Play(done func()) error {
	time.AfterFunc(p.Cooldown, done)
	return nil
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(title, body string) error {
	log.WithField("body", body).Info(title)
	return nil
}

// ThrottledNotifier drops notifications arriving within Cooldown of the last
// delivered one.
type ThrottledNotifier struct {
	next     Notifier
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewThrottledNotifier wraps next with a cooldown.
func NewThrottledNotifier(next Notifier, cooldown time.Duration) *ThrottledNotifier {
	return &ThrottledNotifier{next: next, cooldown: cooldown, now: time.Now}
}

// Notify implements Notifier. A throttled notification is not an error.
func (n *ThrottledNotifier) Notify(title, body string) error {
	n.mu.Lock()
	now := n.now()
	if !n.last.IsZero() && now.Sub(n.last) < n.cooldown {
		n.mu.Unlock()
		log.Debug("notification throttled")
		return nil
	}
	n.last = now
	n.mu.Unlock()

	return n.next.Notify(title, body)
}
