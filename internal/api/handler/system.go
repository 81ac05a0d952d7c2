package handler

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats describes the host and this process.
type SystemStats struct {
	NumCPU        int     `json:"num_cpu"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	ProcessRSS    uint64  `json:"process_rss"`
	HeapAlloc     uint64  `json:"heap_alloc"`
}

// SystemSampler reads host counters with gopsutil. A counter that cannot be
// read is left at zero.
type SystemSampler struct {
	pid    int32
	logger *slog.Logger
}

func NewSystemSampler(logger *slog.Logger) *SystemSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemSampler{pid: int32(os.Getpid()), logger: logger}
}

func (s *SystemSampler) Sample(ctx context.Context) SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := SystemStats{
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
	}

	// interval 0 compares against the previous call instead of blocking
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Debug("cpu sample failed", "error", err)
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Debug("memory sample failed", "error", err)
	} else {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryPercent = vm.UsedPercent
	}

	if p, err := process.NewProcessWithContext(ctx, s.pid); err != nil {
		s.logger.Debug("process lookup failed", "error", err)
	} else if info, err := p.MemoryInfoWithContext(ctx); err != nil {
		s.logger.Debug("process memory sample failed", "error", err)
	} else {
		stats.ProcessRSS = info.RSS
	}

	return stats
}
