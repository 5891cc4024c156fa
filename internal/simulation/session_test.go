package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		Ensemble:       testEnsembleConfig(2, 42),
		MaxWeeks:       20,
		StepsPerUpdate: 5,
	}
}

func mustSession(t *testing.T, s Settings) *Session {
	t.Helper()
	sess, err := NewSession(context.Background(), s, nil)
	require.NoError(t, err)
	return sess
}

func TestSession_StepStopsAtCeiling(t *testing.T) {
	settings := testSettings()
	settings.MaxWeeks = 3
	sess := mustSession(t, settings)

	for i := 0; i < 3; i++ {
		assert.True(t, sess.Step())
	}
	assert.False(t, sess.Step())
	assert.Equal(t, 3, sess.Week())
	assert.Equal(t, 3, sess.Ensemble().Time())
}

func TestSession_PlayToCeiling(t *testing.T) {
	sess := mustSession(t, testSettings())

	var updates []int
	err := sess.Play(context.Background(), func(week int, ens *Ensemble) {
		updates = append(updates, week)
		assert.Equal(t, week, ens.Time())
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10, 15, 20}, updates)
	assert.False(t, sess.Playing())
}

func TestSession_PlayPartialLastUpdate(t *testing.T) {
	settings := testSettings()
	settings.MaxWeeks = 12
	sess := mustSession(t, settings)

	var updates []int
	require.NoError(t, sess.Play(context.Background(), func(week int, _ *Ensemble) {
		updates = append(updates, week)
	}))
	assert.Equal(t, []int{5, 10, 12}, updates)
}

func TestSession_PauseStopsAtBoundary(t *testing.T) {
	settings := testSettings()
	settings.MaxWeeks = 10000
	settings.StepsPerUpdate = 1
	settings.Delay = time.Millisecond
	sess := mustSession(t, settings)

	var once sync.Once
	done := make(chan error, 1)
	go func() {
		done <- sess.Play(context.Background(), func(week int, _ *Ensemble) {
			if week >= 3 {
				once.Do(sess.Pause)
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Play did not stop after Pause")
	}
	week := sess.Week()
	assert.Less(t, week, 10000)
	assert.Equal(t, week, sess.Ensemble().Time())
}

func TestSession_PlayCancelled(t *testing.T) {
	settings := testSettings()
	settings.MaxWeeks = 10000
	settings.StepsPerUpdate = 1
	settings.Delay = time.Hour
	sess := mustSession(t, settings)

	ctx, cancel := context.WithCancel(context.Background())
	err := sess.Play(ctx, func(int, *Ensemble) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sess.Week())
}

func TestSession_PlayTwice(t *testing.T) {
	settings := testSettings()
	settings.MaxWeeks = 10000
	settings.StepsPerUpdate = 1
	settings.Delay = time.Hour
	sess := mustSession(t, settings)

	started := make(chan struct{})
	done := make(chan error, 1)
	var once sync.Once
	go func() {
		done <- sess.Play(context.Background(), func(int, *Ensemble) { once.Do(func() { close(started) }) })
	}()
	<-started

	err := sess.Play(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrSessionPlaying))

	sess.Pause()
	require.NoError(t, <-done)
}

func TestSession_ApplyRebuilds(t *testing.T) {
	sess := mustSession(t, testSettings())
	for i := 0; i < 5; i++ {
		sess.Step()
	}

	changed := testSettings()
	changed.Ensemble.Runs = 3
	changed.Ensemble.Run.Coverage = 0.5
	require.NoError(t, sess.Apply(context.Background(), changed))
	assert.Equal(t, 0, sess.Week())
	assert.Equal(t, 3, sess.Ensemble().Len())
	assert.Equal(t, 0.5, sess.Settings().Ensemble.Run.Coverage)
}

func TestSession_ApplyFailureKeepsPrevious(t *testing.T) {
	sess := mustSession(t, testSettings())
	sess.Step()
	before := sess.Ensemble()

	bad := testSettings()
	bad.Ensemble.Run.NumNodes = 0
	require.Error(t, sess.Apply(context.Background(), bad))
	assert.Same(t, before, sess.Ensemble())
	assert.Equal(t, 1, sess.Week())
}

func TestSession_Reset(t *testing.T) {
	defaults := testSettings()
	sess := mustSession(t, defaults)

	changed := testSettings()
	changed.MaxWeeks = 99
	require.NoError(t, sess.Apply(context.Background(), changed))
	sess.Step()

	require.NoError(t, sess.Reset(context.Background()))
	assert.Equal(t, defaults.MaxWeeks, sess.Settings().MaxWeeks)
	assert.Equal(t, 0, sess.Week())
}
