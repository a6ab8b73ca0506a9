package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/newsletter"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatcher struct {
	mu     sync.Mutex
	active int
	dueAt  []time.Time
	err    error
	fired  chan struct{}
}

func (f *fakeBatcher) SendToActive(context.Context) (*newsletter.BatchReport, error) {
	f.mu.Lock()
	f.active++
	f.mu.Unlock()
	f.signal()
	if f.err != nil {
		return nil, f.err
	}
	return &newsletter.BatchReport{Total: 2, Sent: 2}, nil
}

func (f *fakeBatcher) SendDue(_ context.Context, at time.Time) (*newsletter.BatchReport, error) {
	f.mu.Lock()
	f.dueAt = append(f.dueAt, at)
	f.mu.Unlock()
	f.signal()
	return &newsletter.BatchReport{Total: 1, Sent: 1}, nil
}

func (f *fakeBatcher) signal() {
	if f.fired != nil {
		select {
		case f.fired <- struct{}{}:
		default:
		}
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNew_InvalidCron(t *testing.T) {
	_, err := New(Config{Cron: "every morning"}, nil, &fakeBatcher{}, logger.NewTestLogger(t))

	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Cron = "30 7 * * 1-5"
	cfg.Scheduler.LockTTL = 120000
	cfg.Scheduler.Timezone = "Europe/Berlin"
	cfg.Scheduler.PerSubscriber = true

	got, err := LoadConfig(cfg)

	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, got.LockTTL)
	assert.Equal(t, "Europe/Berlin", got.Location.String())
	assert.True(t, got.PerSubscriber)

	cfg.Scheduler.Timezone = "Mars/Olympus"
	_, err = LoadConfig(cfg)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	s, err := New(Config{Cron: "0 9 * * *"}, nil, &fakeBatcher{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"before nine", time.Date(2024, 5, 1, 8, 59, 0, 0, time.UTC), time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		{"exactly nine", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		{"evening", time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(s.Next(tt.from)), "got %s", s.Next(tt.from))
		})
	}
}

func TestFire_LockPreventsDuplicateBatches(t *testing.T) {
	mr, rdb := newRedis(t)
	batcher := &fakeBatcher{}
	cfg := Config{Cron: "0 9 * * *", LockTTL: 10 * time.Minute}

	first, err := New(cfg, rdb, batcher, logger.NewTestLogger(t))
	require.NoError(t, err)
	second, err := New(cfg, rdb, batcher, logger.NewTestLogger(t))
	require.NoError(t, err)

	slot := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	report, ran, err := first.Fire(context.Background(), slot)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, report.Sent)

	report, ran, err = second.Fire(context.Background(), slot.Add(20*time.Second))
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, report)
	assert.Equal(t, 1, batcher.active)

	assert.True(t, mr.Exists(LockKey(slot)))
	assert.Equal(t, 10*time.Minute, mr.TTL(LockKey(slot)))

	// the next slot is a different lock
	_, ran, err = second.Fire(context.Background(), slot.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, batcher.active)
}

func TestFire_LockExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	batcher := &fakeBatcher{}
	s, err := New(Config{Cron: "0 9 * * *", LockTTL: time.Minute}, rdb, batcher, logger.NewTestLogger(t))
	require.NoError(t, err)
	slot := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	_, _, err = s.Fire(context.Background(), slot)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, ran, err := s.Fire(context.Background(), slot)

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, batcher.active)
}

func TestFire_PerSubscriber(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	batcher := &fakeBatcher{}
	s, err := New(Config{Cron: "* * * * *", PerSubscriber: true, Location: berlin}, nil, batcher, logger.NewTestLogger(t))
	require.NoError(t, err)

	report, ran, err := s.Fire(context.Background(), time.Date(2024, 5, 1, 6, 30, 45, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, batcher.dueAt, 1)
	assert.Equal(t, "08:30", batcher.dueAt[0].Format("15:04"))
	assert.Equal(t, 0, batcher.active)
}

func TestFire_Errors(t *testing.T) {
	t.Run("batch error", func(t *testing.T) {
		batcher := &fakeBatcher{err: errors.New("database down")}
		s, err := New(Config{Cron: "0 9 * * *"}, nil, batcher, logger.NewTestLogger(t))
		require.NoError(t, err)

		_, ran, err := s.Fire(context.Background(), time.Now())

		assert.True(t, ran)
		assert.ErrorContains(t, err, "database down")
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr, rdb := newRedis(t)
		mr.Close()
		batcher := &fakeBatcher{}
		s, err := New(Config{Cron: "0 9 * * *"}, rdb, batcher, logger.NewTestLogger(t))
		require.NoError(t, err)

		_, ran, err := s.Fire(context.Background(), time.Now())

		assert.False(t, ran)
		assert.ErrorContains(t, err, "scheduler lock")
		assert.Equal(t, 0, batcher.active)
	})
}

func TestRun_FiresAndStops(t *testing.T) {
	batcher := &fakeBatcher{fired: make(chan struct{}, 1)}
	s, err := New(Config{Cron: "* * * * * * *"}, nil, batcher, logger.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-batcher.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never fired")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
