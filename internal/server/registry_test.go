package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/randutil"
)

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	r := NewRegistry(cfg, mClock, randutil.New(3), logger)
	t.Cleanup(r.CloseAll)
	return r, mClock
}

func newGame(t *testing.T, r *Registry) *game.Session {
	t.Helper()
	gc, err := game.NewConfig(3, 0)
	require.NoError(t, err)
	s, err := r.Create(gc)
	require.NoError(t, err)
	return s
}

// finish plays every card of s at 1.
func finish(t *testing.T, s *game.Session) {
	t.Helper()
	for p := s.Positions() - 1; p >= 0; p-- {
		require.NoError(t, s.StartDraw(p))
		require.NoError(t, s.StopDrawAt(p, 1))
		require.NoError(t, s.Flip(p))
	}
	_, ok := s.Result()
	require.True(t, ok)
}

func TestRegistryIdleEviction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.IdleTimeout = 10 * time.Minute
	r, mClock := newTestRegistry(t, cfg)

	idle := newGame(t, r)
	busy := newGame(t, r)

	mClock.Advance(6 * time.Minute).MustWait(ctx)
	_, err := r.Get(busy.ID())
	require.NoError(t, err)
	assert.Zero(t, r.Sweep())

	mClock.Advance(4 * time.Minute).MustWait(ctx)
	assert.Equal(t, 1, r.Sweep())
	_, err = r.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, idle.Snapshot().Closed)

	_, err = r.Get(busy.ID())
	assert.NoError(t, err)
}

func TestRegistryKeepsConnectedSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.IdleTimeout = time.Minute
	r, mClock := newTestRegistry(t, cfg)

	s := newGame(t, r)
	_, err := r.Attach(s.ID())
	require.NoError(t, err)

	mClock.Advance(time.Hour).MustWait(ctx)
	assert.Zero(t, r.Sweep())

	finish(t, s)
	assert.Zero(t, r.Sweep(), "finished but still watched")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDetachEvictsFinishedSession(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())

	s := newGame(t, r)
	_, err := r.Attach(s.ID())
	require.NoError(t, err)
	_, err = r.Attach(s.ID())
	require.NoError(t, err)

	finish(t, s)

	r.Detach(s.ID())
	assert.Equal(t, 1, r.Len(), "one connection remains")

	r.Detach(s.ID())
	assert.Zero(t, r.Len())
	assert.True(t, s.Snapshot().Closed)

	// Detaching an evicted session is harmless
	r.Detach(s.ID())
}

func TestRegistryDetachKeepsUnfinishedSession(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())

	s := newGame(t, r)
	_, err := r.Attach(s.ID())
	require.NoError(t, err)
	r.Detach(s.ID())

	assert.Equal(t, 1, r.Len())
	_, err = r.Attach("unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryCreateRecoversSpaceWhenFull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.MaxSessions = 2
	cfg.IdleTimeout = 10 * time.Minute
	r, mClock := newTestRegistry(t, cfg)

	done := newGame(t, r)
	finish(t, done)
	stale := newGame(t, r)

	gc, err := game.NewConfig(3, 0)
	require.NoError(t, err)

	// The finished session makes room
	_, err = r.Create(gc)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = r.Create(gc)
	assert.ErrorIs(t, err, ErrTooManySessions)

	mClock.Advance(10 * time.Minute).MustWait(ctx)
	_, err = r.Create(gc)
	require.NoError(t, err)
	_, err = r.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registry did not stop")
	}
}
