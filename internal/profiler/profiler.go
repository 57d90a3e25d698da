// Package profiler writes CPU and heap profiles of a gate run to files.
package profiler

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/JNZader/prgate/internal/metrics"
)

// Profiler handles profile collection
type Profiler struct {
	cpuFile   *os.File
	memFile   string
	startTime time.Time
}

// Config configures the profiler
type Config struct {
	CPUProfile string // File for CPU profile
	MemProfile string // File for heap profile, written on Stop
}

// Enabled reports whether any profile is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != ""
}

// New starts profiling.
func New(cfg Config) (*Profiler, error) {
	p := &Profiler{
		memFile:   cfg.MemProfile,
		startTime: time.Now(),
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		p.cpuFile = f

		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	return p, nil
}

// Stop stops profiling and saves results
func (p *Profiler) Stop() error {
	var errs []error

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close CPU profile: %w", err))
		}
		p.cpuFile = nil
	}

	if p.memFile != "" {
		runtime.GC()

		f, err := os.Create(p.memFile)
		if err != nil {
			errs = append(errs, fmt.Errorf("create memory profile: %w", err))
		} else {
			if err := pprof.WriteHeapProfile(f); err != nil {
				errs = append(errs, fmt.Errorf("write memory profile: %w", err))
			}
			f.Close()
		}
		p.memFile = ""
	}

	return errors.Join(errs...)
}

// Duration returns the time since profiler started
func (p *Profiler) Duration() time.Duration {
	return time.Since(p.startTime)
}

// Stats returns current memory statistics
func Stats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemStats{
		Alloc:     m.Alloc,
		Sys:       m.Sys,
		NumGC:     m.NumGC,
		HeapAlloc: m.HeapAlloc,
	}
}

// MemStats contains memory statistics
type MemStats struct {
	Alloc     uint64 // Currently allocated bytes
	Sys       uint64 // Memory obtained from OS
	NumGC     uint32 // Number of GC runs
	HeapAlloc uint64 // Heap bytes allocated
}

// Record publishes the stats as gauges.
func (m MemStats) Record(c *metrics.Collector) {
	c.Gauge(metrics.MetricHeapAlloc).Set(float64(m.HeapAlloc))
	c.Gauge(metrics.MetricGCRuns).Set(float64(m.NumGC))
}

// String formats the statistics
func (m MemStats) String() string {
	return fmt.Sprintf(
		"Alloc: %s, HeapAlloc: %s, Sys: %s, NumGC: %d",
		formatBytes(m.Alloc),
		formatBytes(m.HeapAlloc),
		formatBytes(m.Sys),
		m.NumGC,
	)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
