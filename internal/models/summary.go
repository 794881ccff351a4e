package models

import (
	"sort"
	"time"
)

// Result is the outcome of checking one dataset request
type Result struct {
	Request  Request       `json:"request"`
	Verdict  *Verdict      `json:"response,omitempty"` // nil when no spec matched the api name
	Error    string        `json:"error,omitempty"`
	SpecFile string        `json:"spec_file"`
	Duration time.Duration `json:"duration_ns"`
}

// Succeeded reports whether a verdict was produced with a status below 400
func (r Result) Succeeded() bool {
	return r.Verdict != nil && !r.Verdict.Failed()
}

// Summary aggregates the results of a batch run
type Summary struct {
	TotalRequests int `json:"total_requests"`
	Successful    int `json:"successful_requests"`
	Failed        int `json:"failed_requests"`
	Unmatched     int `json:"unmatched_requests"`

	// Status code distribution, unmatched requests are not counted here
	StatusCodes map[int]int `json:"status_codes"`

	TotalDuration time.Duration `json:"total_duration_ns"`
	Latency       Latency       `json:"latency"`

	Results []Result `json:"results"`
}

// Latency holds per-request check duration statistics
type Latency struct {
	Min time.Duration `json:"min_ns"`
	Max time.Duration `json:"max_ns"`
	Avg time.Duration `json:"avg_ns"`
	P50 time.Duration `json:"p50_ns"`
	P90 time.Duration `json:"p90_ns"`
	P99 time.Duration `json:"p99_ns"`
}

// AddResult adds a result to the summary and updates the counters
func (s *Summary) AddResult(result Result) {
	s.Results = append(s.Results, result)
	s.TotalRequests++

	if s.StatusCodes == nil {
		s.StatusCodes = make(map[int]int)
	}

	if result.Verdict == nil {
		s.Unmatched++
		s.Failed++
		return
	}

	s.StatusCodes[result.Verdict.StatusCode]++
	if result.Succeeded() {
		s.Successful++
	} else {
		s.Failed++
	}
}

// Finalize records the wall time of the run
func (s *Summary) Finalize(totalDuration time.Duration) {
	s.TotalDuration = totalDuration
}

// SortedStatusCodes returns the observed status codes in ascending order
func (s *Summary) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
