package alert

import "time"

// Defaults for the alert text and timings.
const (
	DefaultTitle          = "Hands off!"
	DefaultBody           = "You've just touched your face!"
	DefaultNotifyCooldown = 3 * time.Second
	DefaultSilentCooldown = 2 * time.Second
)

// Config configures an Alerter.
type Config struct {
	Title string
	Body  string
	// RearmAfter re-arms the debouncer when the sound could not be played.
	RearmAfter time.Duration
}

// Alerter runs the debouncer and, when it fires, plays one sound and shows
// one notification. Sinks run off the caller's goroutine.
type Alerter struct {
	debouncer *Debouncer
	player    Player
	notifier  Notifier
	config    Config
}

// NewAlerter creates an Armed Alerter.
func NewAlerter(player Player, notifier Notifier, config Config) *Alerter {
	if config.Title == "" {
		config.Title = DefaultTitle
	}
	if config.Body == "" {
		config.Body = DefaultBody
	}
	if config.RearmAfter <= 0 {
		config.RearmAfter = DefaultSilentCooldown
	}
	return &Alerter{
		debouncer: NewDebouncer(),
		player:    player,
		notifier:  notifier,
		config:    config,
	}
}

// Observe feeds one classification decision and reports whether an alert fired.
func (a *Alerter) Observe(worthy bool) bool {
	if !a.debouncer.Observe(worthy) {
		return false
	}

	if err := a.player.Play(a.debouncer.PlaybackFinished); err != nil {
		log.WithError(err).Warn("alert sound failed")
		time.AfterFunc(a.config.RearmAfter, a.debouncer.PlaybackFinished)
	}

	go func() {
		if err := a.notifier.Notify(a.config.Title, a.config.Body); err != nil {
			log.WithError(err).Warn("alert notification failed")
		}
	}()
	return true
}

// State returns the debouncer state.
func (a *Alerter) State() State {
	return a.debouncer.State()
}
