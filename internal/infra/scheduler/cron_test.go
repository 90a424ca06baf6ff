package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/infra/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := scheduler.New(time.UTC, zap.NewNop())
	err := s.Add(context.Background(), scheduler.Job{Name: "scan", Spec: "not a cron", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestScheduler_NextRunInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	s := scheduler.New(loc, zap.NewNop())
	require.NoError(t, s.Add(context.Background(), scheduler.Job{Name: "reminders", Spec: "0 9 * * *", Run: func(context.Context) error { return nil }}))
	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool {
		e := s.Entries()
		return len(e) == 1 && !e[0].IsZero()
	}, time.Second, 10*time.Millisecond)

	next := s.Entries()[0].In(loc)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestScheduler_RunsJob(t *testing.T) {
	s := scheduler.New(time.UTC, zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add(context.Background(), scheduler.Job{
		Name: "tick",
		Spec: "@every 10ms",
		Run: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}))
	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
