package main

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
)

// csvStatus is the fixed set of fields printed as a single comma-separated
// line after every command, mirroring a build log a pipeline can grep
// without parsing a table: text length, timings, a peak-allocation proxy,
// and (for maws/mrws) the counts a caller tallies a run by.
type csvStatus struct {
	textLength  uint64
	loadTime    time.Duration
	processTime time.Duration
	peakAlloc   uint64

	nMAWs       uint64
	minLength   uint64
	maxLength   uint64
	nMaxreps    uint64
	nMAWMaxreps uint64

	// entropyBits is the Shannon entropy, in bits, of the index's empirical
	// base composition; 0 on the detect commands, which don't recompute it.
	entropyBits float64
}

func printCSVStatusLine(s csvStatus) {
	ratio := 0.0
	if s.nMaxreps > 0 {
		ratio = float64(s.nMAWMaxreps) / float64(s.nMaxreps)
	}
	fmt.Fprintf(os.Stderr, "%d,%.3f,%.3f,%d,%d,%d,%d,%d,%d,%.4f,%.4f\n",
		s.textLength,
		s.loadTime.Seconds(),
		s.processTime.Seconds(),
		s.peakAlloc,
		s.nMAWs,
		s.minLength,
		s.maxLength,
		s.nMaxreps,
		s.nMAWMaxreps,
		ratio,
		s.entropyBits,
	)
}

// peakAllocDuring runs fn and returns an approximation of the high-water
// mark of runtime.MemStats.TotalAlloc observed while it ran: a background
// goroutine samples it every few milliseconds since Go exposes no direct
// peak-usage counter the way some runtimes do.
func peakAllocDuring(fn func()) uint64 {
	var peak uint64
	done := make(chan struct{})
	go func() {
		var mem runtime.MemStats
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				runtime.ReadMemStats(&mem)
				for {
					old := atomic.LoadUint64(&peak)
					if mem.TotalAlloc <= old {
						break
					}
					if atomic.CompareAndSwapUint64(&peak, old, mem.TotalAlloc) {
						break
					}
				}
			}
		}
	}()
	fn()
	close(done)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	if mem.TotalAlloc > peak {
		peak = mem.TotalAlloc
	}
	return peak
}

// printHistogram renders an emitted-word length histogram as a table,
// grounded on rbs_calculator.PrintBindingSites's tablewriter usage.
func printHistogram(min uint64, counts []uint64) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Length", "Count"})
	for i, c := range counts {
		table.Append([]string{fmt.Sprintf("%d", min+uint64(i)), fmt.Sprintf("%d", c)})
	}
	table.Render()
}
