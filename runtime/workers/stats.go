package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type OnlineCounter interface {
	Count() int
}

type QueueGauge interface {
	Depth() int
	Capacity() int
}

type SelfStats struct {
	RSS        uint64
	CPUPercent float64
}

// ReadSelfStats samples memory and CPU of the current process.
func ReadSelfStats() (SelfStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return SelfStats{}, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return SelfStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return SelfStats{}, err
	}
	return SelfStats{RSS: memInfo.RSS, CPUPercent: cpuPercent}, nil
}

// StatsWorker logs a one-line health summary every interval.
type StatsWorker struct {
	log      *slog.Logger
	online   OnlineCounter
	queue    QueueGauge
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, online OnlineCounter, queue QueueGauge, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, online: online, queue: queue, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats reporting")
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *StatsWorker) report(startTime time.Time) {
	attrs := []any{
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"online", w.online.Count(),
		"notification_queue", w.queue.Depth(),
		"notification_capacity", w.queue.Capacity(),
	}
	stats, err := ReadSelfStats()
	if err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_mb", stats.RSS/1024/1024, "cpu_percent", stats.CPUPercent)
	}
	w.log.Info("Relay stats", attrs...)
}
