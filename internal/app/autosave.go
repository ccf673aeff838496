package app

import (
	"context"
	"time"
)

const defaultAutosaveInterval = 5 * time.Minute

// StartAutosave saves the state at a fixed cadence until ctx is cancelled,
// then saves once more. It returns immediately; the returned channel is
// closed after the final save.
func (a *App) StartAutosave(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = defaultAutosaveInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				a.autosave()
				return
			case <-ticker.C:
				a.autosave()
			}
		}
	}()
	return done
}

func (a *App) autosave() {
	if err := a.Save(); err != nil {
		a.Logger.Error("Autosave failed", "error", err)
		return
	}
	a.Logger.Debug("Autosaved state.")
}
