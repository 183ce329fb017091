package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	runs    atomic.Int32
	outcome func(run int32) error
}

func (w *countingWorker) Run(ctx context.Context) error {
	return w.outcome(w.runs.Add(1))
}

func Test_Supervisor_Restarts_Crashed_Worker(t *testing.T) {
	req := require.New(t)
	worker := &countingWorker{outcome: func(run int32) error {
		if run < 3 {
			return fmt.Errorf("crash %d", run)
		}
		return nil
	}}

	supervisor := NewSupervisor(slog.Default())
	supervisor.Add(worker)

	done := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not drain")
	}
	req.Equal(int32(3), worker.runs.Load())
}

func Test_Supervisor_Recovers_Panicking_Worker(t *testing.T) {
	req := require.New(t)
	worker := &countingWorker{outcome: func(run int32) error {
		if run == 1 {
			panic("worker went sideways")
		}
		return nil
	}}

	supervisor := NewSupervisor(slog.Default())
	supervisor.Add(worker)

	done := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not recover")
	}
	req.Equal(int32(2), worker.runs.Load())
}

func Test_Supervisor_Stop_Releases_Blocked_Worker(t *testing.T) {
	worker := &countingWorker{outcome: func(int32) error {
		return nil
	}}
	blocked := blockingWorker{}

	supervisor := NewSupervisor(slog.Default())
	supervisor.Add(worker, blocked)

	done := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	supervisor.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

type blockingWorker struct{}

func (blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
