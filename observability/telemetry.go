package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"pulsex/contract"
)

// Telemetry periodically logs process health and hub occupancy. It is a
// supervised worker; a failing sample is logged and skipped, never fatal.
type Telemetry struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration
}

func NewTelemetry(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *Telemetry {
	return &Telemetry{log: log, registry: registry, interval: interval}
}

func (t *Telemetry) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.sample(proc)
		}
	}
}

func (t *Telemetry) sample(proc *process.Process) {
	connections, rooms := t.registry.Counts()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var rssMb uint64
	if memInfo, err := proc.MemoryInfo(); err == nil {
		rssMb = memInfo.RSS / (1 << 20)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		t.log.Debug("cpu sample failed", "error", err)
	}

	t.log.Info("hub telemetry",
		"connections", connections,
		"rooms", rooms,
		"goroutines", runtime.NumGoroutine(),
		"heap_alloc_mb", ms.HeapAlloc/(1<<20),
		"num_gc", ms.NumGC,
		"rss_mb", rssMb,
		"cpu_percent", cpuPercent,
	)
}
