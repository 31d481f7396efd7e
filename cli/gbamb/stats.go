package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aybabtme/uniplot/histogram"
)

const histogramBins = 10

// printStats summarizes reply latencies as microseconds.
func printStats(w io.Writer, samples []time.Duration) {
	if len(samples) == 0 {
		fmt.Fprintln(w, "no replies received")
		return
	}

	us := make([]float64, len(samples))
	for i, d := range samples {
		us[i] = float64(d) / float64(time.Microsecond)
	}
	sort.Float64s(us)

	fmt.Fprintf(w, "%d replies; latency min %.0fus, median %.0fus, p99 %.0fus, max %.0fus\n",
		len(us), us[0], us[len(us)/2], us[len(us)*99/100], us[len(us)-1])

	h := histogram.Hist(histogramBins, us)
	if err := histogram.Fprint(w, h, histogram.Linear(40)); err != nil {
		fmt.Fprintf(w, "histogram: %v\n", err)
	}
}
