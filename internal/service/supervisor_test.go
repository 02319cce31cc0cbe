package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/service"
)

type pinger struct {
	failing      bool
	cleanupCalls int32
}

func (p *pinger) Name() string             { return "Pinger" }
func (p *pinger) Interval() time.Duration  { return 20 * time.Millisecond }
func (p *pinger) Update(context.Context) error {
	if p.failing {
		return errors.New("ping failed")
	}
	return nil
}
func (p *pinger) Cleanup(context.Context) error {
	atomic.AddInt32(&p.cleanupCalls, 1)
	return nil
}

func TestSupervisorStopsAfterMaxFailures(t *testing.T) {
	p := &pinger{failing: true}
	sup := service.NewSupervisor(p, 3, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start(context.Background()))

	require.Eventually(t, func() bool {
		return sup.State() == service.Stopped
	}, 2*time.Second, 10*time.Millisecond)

	require.EqualValues(t, 1, atomic.LoadInt32(&p.cleanupCalls))
}

func TestSupervisorSucceedingServiceRunsUntilStopped(t *testing.T) {
	p := &pinger{failing: false}
	sup := service.NewSupervisor(p, 2, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, service.Running, sup.State())
	require.NoError(t, sup.Stop(context.Background()))
	require.Equal(t, service.Stopped, sup.State())
	require.EqualValues(t, 1, atomic.LoadInt32(&p.cleanupCalls))
}

func TestSupervisorPauseSkipsUpdates(t *testing.T) {
	var calls int32
	svc := &countingService{interval: 10 * time.Millisecond, calls: &calls}
	sup := service.NewSupervisor(svc, 5, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start(context.Background()))
	require.NoError(t, sup.Pause())
	time.Sleep(80 * time.Millisecond)
	paused := atomic.LoadInt32(&calls)

	require.NoError(t, sup.Resume())
	time.Sleep(80 * time.Millisecond)
	require.Greater(t, atomic.LoadInt32(&calls), paused)

	require.NoError(t, sup.Stop(context.Background()))
}

type countingService struct {
	interval time.Duration
	calls    *int32
}

func (c *countingService) Name() string            { return "counter" }
func (c *countingService) Interval() time.Duration { return c.interval }
func (c *countingService) Update(context.Context) error {
	atomic.AddInt32(c.calls, 1)
	return nil
}
func (c *countingService) Cleanup(context.Context) error { return nil }
