package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionPlaying is returned by Play when the session is already playing.
var ErrSessionPlaying = errors.New("session is already playing")

// Settings configure a session.
type Settings struct {
	Ensemble EnsembleConfig

	// MaxWeeks is the step ceiling. Step and Play stop there.
	MaxWeeks int

	// StepsPerUpdate is how many weeks Play advances between updates.
	StepsPerUpdate int

	// Delay is the pause between updates while playing.
	Delay time.Duration
}

// UpdateFunc receives the current week and ensemble after each Play update.
// It runs on the playing goroutine and must not call back into the session.
type UpdateFunc func(week int, ens *Ensemble)

// Session is the control loop around an ensemble: it replaces global
// "current time / running / active models" state with one object whose only
// mutators are Apply, Step, Reset, Play and Pause. Safe for concurrent use;
// state changes only ever happen at step boundaries.
type Session struct {
	mu       sync.Mutex
	defaults Settings
	settings Settings
	ens      *Ensemble
	week     int
	stop     context.CancelFunc
	logger   *slog.Logger
}

// NewSession builds a session from defaults. Reset restores them.
func NewSession(ctx context.Context, defaults Settings, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{defaults: defaults, logger: logger}
	if err := s.Apply(ctx, defaults); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply stops playback and rebuilds the ensemble from settings, resetting the
// week to 0. If the build fails the previous ensemble stays active.
func (s *Session) Apply(ctx context.Context, settings Settings) error {
	if settings.MaxWeeks < 0 {
		return fmt.Errorf("max weeks must be non-negative, got %d", settings.MaxWeeks)
	}
	s.Pause()

	start := time.Now()
	ens, err := NewEnsemble(ctx, settings.Ensemble)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.ens = ens
	s.week = 0
	s.logger.Info("session applied",
		"runs", ens.Len(),
		"nodes", settings.Ensemble.Run.NumNodes,
		"mode", settings.Ensemble.Run.Mode,
		"prep", settings.Ensemble.Run.Coverage,
		"elapsed", time.Since(start))
	return nil
}

// Reset restores the default settings and rebuilds.
func (s *Session) Reset(ctx context.Context) error {
	return s.Apply(ctx, s.defaults)
}

// Step advances every run by one week. It returns false without stepping
// when the ceiling has been reached.
func (s *Session) Step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.week >= s.settings.MaxWeeks {
		return false
	}
	s.ens.Step()
	s.week++
	return true
}

// Play advances StepsPerUpdate weeks at a time, calling onUpdate after each
// batch and waiting Delay in between. It returns nil when the ceiling is
// reached or Pause is called, and ctx.Err() when ctx is cancelled. Either
// way it stops between steps, never inside one.
func (s *Session) Play(ctx context.Context, onUpdate UpdateFunc) error {
	playCtx, stop := context.WithCancel(ctx)
	defer stop()

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return ErrSessionPlaying
	}
	s.stop = stop
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stop = nil
		s.mu.Unlock()
	}()

	for {
		if playCtx.Err() != nil {
			return ctx.Err()
		}

		s.mu.Lock()
		steps := max(1, s.settings.StepsPerUpdate)
		for k := 0; k < steps && s.week < s.settings.MaxWeeks; k++ {
			if playCtx.Err() != nil {
				break
			}
			s.ens.Step()
			s.week++
		}
		week, ens := s.week, s.ens
		done := s.week >= s.settings.MaxWeeks
		delay := s.settings.Delay
		s.mu.Unlock()

		if onUpdate != nil {
			onUpdate(week, ens)
		}
		if done {
			return nil
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-playCtx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// Pause stops a running Play at the next step boundary. No-op when idle.
func (s *Session) Pause() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Playing reports whether Play is running.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Week returns the number of weeks stepped since the last Apply.
func (s *Session) Week() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.week
}

// Inspect calls fn with the current week and ensemble while holding the
// session lock, so reads inside fn never overlap a step. fn must not call
// back into the session.
func (s *Session) Inspect(fn func(week int, ens *Ensemble)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.week, s.ens)
}

// Ensemble returns the active ensemble. Callers must not step it directly
// and should read it through Inspect while the session is playing.
func (s *Session) Ensemble() *Ensemble {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ens
}

// Settings returns the active settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
