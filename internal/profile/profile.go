// Package profile provides pprof-based profiling and lightweight
// in-process timing for the forecast pipeline's own phases (fetch, ETo
// computation, hot-cache persistence), exposed for operators through
// matopibactl trigger (its --cpuprofile flag and phase timing report).
package profile

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"os"
)

// Profiler manages CPU and memory profiling for a single run.
type Profiler struct {
	cpuFile   *os.File
	startTime time.Time
	mu        sync.Mutex
	isRunning bool
}

// NewProfiler creates a new profiler instance.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPUProfile begins CPU profiling and writes to the specified file.
func (p *Profiler) StartCPUProfile(filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("profiling already running")
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}

	p.cpuFile = f
	p.startTime = time.Now()
	p.isRunning = true

	return nil
}

// StopCPUProfile stops CPU profiling and closes the file.
func (p *Profiler) StopCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return fmt.Errorf("profiling not running")
	}

	pprof.StopCPUProfile()
	if p.cpuFile != nil {
		p.cpuFile.Close()
	}

	elapsed := time.Since(p.startTime)
	fmt.Printf("CPU profile complete: %v duration\n", elapsed)

	p.isRunning = false
	return nil
}

// WriteHeapProfile writes the current heap profile to the specified file.
func (p *Profiler) WriteHeapProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create heap profile: %w", err)
	}
	defer f.Close()

	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write heap profile: %w", err)
	}

	return nil
}

// ProfileGoroutines writes the goroutine profile to the specified file.
// Most useful right after a run that hung or leaked the fetch semaphore.
func (p *Profiler) ProfileGoroutines(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create goroutine profile: %w", err)
	}
	defer f.Close()

	return pprof.Lookup("goroutine").WriteTo(f, 0)
}

// StartPProfServer starts an HTTP server exposing the standard pprof
// endpoints, separate from the public read API's listener.
func StartPProfServer(addr string) *http.Server {
	// The blank net/http/pprof import registers its handlers on
	// http.DefaultServeMux, so that is the mux this server serves.
	server := &http.Server{
		Addr:    addr,
		Handler: http.DefaultServeMux,
	}

	go func() {
		fmt.Printf("Starting pprof server on %s\n", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("pprof server error: %v\n", err)
		}
	}()

	return server
}

// RuntimeStats holds current runtime statistics.
type RuntimeStats struct {
	Timestamp    time.Time
	NumGoroutine int
	NumCPU       int
	HeapAlloc    uint64
	HeapInuse    uint64
	HeapObjects  uint64
	NumGC        uint32
}

// GetRuntimeStats returns current runtime statistics.
func GetRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Timestamp:    time.Now(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    m.HeapAlloc,
		HeapInuse:    m.HeapInuse,
		HeapObjects:  m.HeapObjects,
		NumGC:        m.NumGC,
	}
}

// PrintRuntimeStats prints runtime statistics to the provided writer.
func PrintRuntimeStats(w io.Writer) {
	stats := GetRuntimeStats()

	fmt.Fprintf(w, "\n=== Runtime Statistics ===\n")
	fmt.Fprintf(w, "Timestamp: %s\n", stats.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Goroutines: %d\n", stats.NumGoroutine)
	fmt.Fprintf(w, "CPUs: %d\n", stats.NumCPU)
	fmt.Fprintf(w, "Heap alloc: %.2f MB\n", float64(stats.HeapAlloc)/(1024*1024))
	fmt.Fprintf(w, "Heap inuse: %.2f MB\n", float64(stats.HeapInuse)/(1024*1024))
	fmt.Fprintf(w, "Heap objects: %d\n", stats.HeapObjects)
	fmt.Fprintf(w, "GC count: %d\n", stats.NumGC)
}

// PipelineTimings tracks the duration of the orchestrator's own phases
// across runs, for operators comparing a slow run against history.
type PipelineTimings struct {
	mu           sync.RWMutex
	fetchTimes   []time.Duration
	computeTimes []time.Duration
	persistTimes []time.Duration
	startTime    time.Time
}

// NewPipelineTimings creates a new, empty timing tracker.
func NewPipelineTimings() *PipelineTimings {
	return &PipelineTimings{startTime: time.Now()}
}

// RecordFetchTime records the duration of one Phase 1 fetch.
func (pt *PipelineTimings) RecordFetchTime(d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.fetchTimes = append(pt.fetchTimes, d)
}

// RecordComputeTime records the duration of one Phase 2 ETo computation.
func (pt *PipelineTimings) RecordComputeTime(d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.computeTimes = append(pt.computeTimes, d)
}

// RecordPersistTime records the duration of one Phase 4 hot-cache write.
func (pt *PipelineTimings) RecordPersistTime(d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.persistTimes = append(pt.persistTimes, d)
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// PrintReport prints a summary of recorded phase timings.
func (pt *PipelineTimings) PrintReport(w io.Writer) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	fmt.Fprintf(w, "\n=== Pipeline Timing Report ===\n")
	fmt.Fprintf(w, "Uptime: %v\n", time.Since(pt.startTime))
	fmt.Fprintf(w, "Fetch:   %d runs (avg: %v)\n", len(pt.fetchTimes), average(pt.fetchTimes))
	fmt.Fprintf(w, "Compute: %d runs (avg: %v)\n", len(pt.computeTimes), average(pt.computeTimes))
	fmt.Fprintf(w, "Persist: %d runs (avg: %v)\n", len(pt.persistTimes), average(pt.persistTimes))
}

// EnableMutexProfiling enables mutex profiling with the specified fraction.
func EnableMutexProfiling(fraction int) {
	runtime.SetMutexProfileFraction(fraction)
}

// EnableBlockProfiling enables block profiling with the specified rate.
func EnableBlockProfiling(rate int) {
	runtime.SetBlockProfileRate(rate)
}

// ForceGC forces a garbage collection cycle.
func ForceGC() {
	runtime.GC()
}
