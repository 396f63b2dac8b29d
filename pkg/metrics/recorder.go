// Package metrics aggregates per-query performance records for reporting.
// The recorder only consumes what the query pipeline emits; it never feeds
// back into execution decisions.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Record is one completed query, successful or not.
type Record struct {
	Question  string
	Target    string
	Duration  time.Duration
	CacheHit  bool
	Pooled    bool
	Success   bool
	ErrorKind string
	At        time.Time
}

// Recorder accumulates records in memory for the life of the process.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores one query outcome. A zero At is stamped with now.
func (r *Recorder) Record(rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Reset drops all records, for test isolation.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// Report is the aggregate view over all recorded queries.
type Report struct {
	TotalQueries int
	Successes    int
	CacheHits    int
	PooledRuns   int
	SuccessRate  float64
	CacheHitRate float64
	PooledShare  float64
	AvgDuration  time.Duration
	P50Duration  time.Duration
	P95Duration  time.Duration
	ErrorKinds   map[string]int
}

// Report computes the aggregates. Percentiles are taken over all queries,
// cache hits included; a hit's near-zero duration is part of the story.
func (r *Recorder) Report() Report {
	records := r.Records()

	report := Report{
		TotalQueries: len(records),
		ErrorKinds:   make(map[string]int),
	}
	if len(records) == 0 {
		return report
	}

	durations := make([]time.Duration, 0, len(records))
	var total time.Duration
	for _, rec := range records {
		durations = append(durations, rec.Duration)
		total += rec.Duration
		if rec.Success {
			report.Successes++
		} else if rec.ErrorKind != "" {
			report.ErrorKinds[rec.ErrorKind]++
		}
		if rec.CacheHit {
			report.CacheHits++
		}
		if rec.Pooled {
			report.PooledRuns++
		}
	}

	n := float64(len(records))
	report.SuccessRate = float64(report.Successes) / n
	report.CacheHitRate = float64(report.CacheHits) / n
	report.PooledShare = float64(report.PooledRuns) / n
	report.AvgDuration = total / time.Duration(len(records))

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	report.P50Duration = durations[percentileIndex(len(durations), 0.50)]
	report.P95Duration = durations[percentileIndex(len(durations), 0.95)]
	return report
}

func percentileIndex(n int, p float64) int {
	idx := int(p * float64(n-1))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
