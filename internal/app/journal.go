package app

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/store"
)

// Journal writes are best effort: a failing database never stops training
// or classification.

func (a *App) journalBurst(label gesture.Label, requested, completed int, err error, started time.Time) {
	fields := logrus.Fields{"label": label, "completed": completed, "requested": requested}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("training burst failed")
	} else {
		log.WithFields(fields).Info("training burst complete")
	}

	if a.config.Journal == nil {
		return
	}
	b := &store.Burst{
		Label:      string(label),
		Requested:  requested,
		Completed:  completed,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		b.Error = err.Error()
	}
	if err := a.config.Journal.Bursts().Create(b); err != nil {
		log.WithError(err).Warn("failed to journal training burst")
	}
}

func (a *App) journalSessionStart() string {
	if a.config.Journal == nil {
		return ""
	}
	sess, err := a.config.Journal.Sessions().Start()
	if err != nil {
		log.WithError(err).Warn("failed to journal run session")
		return ""
	}
	return sess.ID
}

func (a *App) journalSessionStop(id string) {
	if a.config.Journal == nil || id == "" {
		return
	}
	if err := a.config.Journal.Sessions().Stop(id); err != nil {
		log.WithError(err).Warn("failed to close run session")
	}
}

func (a *App) journalAlert(rec *store.Alert) {
	if a.config.Journal == nil || rec.SessionID == "" {
		return
	}
	if err := a.config.Journal.Alerts().Create(rec); err != nil {
		log.WithError(err).Warn("failed to journal alert")
	}
}
