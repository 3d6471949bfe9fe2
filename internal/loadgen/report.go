package loadgen

import (
	"fmt"
	"io"
	"time"
)

type ServiceResult struct {
	Name      string
	Attempts  int64
	Successes int64
	Failures  int64
	Skipped   int64
}

type Report struct {
	Services []ServiceResult
	Elapsed  time.Duration
}

func (r Report) Attempts() int64 {
	var n int64
	for _, s := range r.Services {
		n += s.Attempts
	}
	return n
}

// Throughput is attempted requests per second of wall-clock time.
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Attempts()) / r.Elapsed.Seconds()
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\n==== FINAL RESULTS ====\n")
	for _, s := range r.Services {
		fmt.Fprintf(w, "%s: %d successful out of %d attempted\n", s.Name, s.Successes, s.Attempts)
	}
	fmt.Fprintf(w, "Total time: %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput: %.2f req/sec\n", r.Throughput())
}
