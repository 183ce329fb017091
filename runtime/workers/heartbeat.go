package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// Gauges reports the live connection and room counts; the runtime services
// implement it.
type Gauges interface {
	Count() int
	RoomCount() int
}

type liveGauges struct {
	connections interface{ Count() int }
	rooms       interface{ RoomCount() int }
}

func (g liveGauges) Count() int     { return g.connections.Count() }
func (g liveGauges) RoomCount() int { return g.rooms.RoomCount() }

// NewGauges combines the registry and room manager into one Gauges view.
func NewGauges(connections interface{ Count() int }, rooms interface{ RoomCount() int }) Gauges {
	return liveGauges{connections: connections, rooms: rooms}
}

// HeartbeatWorker periodically logs process self-stats (CPU, RSS) together
// with the relay's own gauges and counters. It is the relay's minimal
// operational signal; anything heavier belongs to an external monitoring
// stack.
type HeartbeatWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	gauges   Gauges
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.Monitor,
	gauges Gauges, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor, gauges: gauges, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(proc)
			if err != nil {
				w.log.Warn("self stats collection failed", "error", err)
				continue
			}
			snapshot := w.monitor.Snapshot()
			w.log.Info("heartbeat",
				"connections", w.gauges.Count(),
				"rooms", w.gauges.RoomCount(),
				"messages_dispatched", snapshot["messages_dispatched"],
				"events_dropped", snapshot["events_dropped"],
				"calls_initiated", snapshot["calls_initiated"],
				"cpu_percent", cpu,
				"rss_bytes", rss)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
