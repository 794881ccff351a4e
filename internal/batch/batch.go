// Package batch checks a dataset of requests against a catalog of OpenAPI
// documents with a pool of workers.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/moamenhredeen/apicheck/internal/catalog"
	"github.com/moamenhredeen/apicheck/internal/checker"
	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/moamenhredeen/apicheck/internal/models"
)

// EventType represents the type of batch event
type EventType int

const (
	// EventStarting indicates a request is about to be checked
	EventStarting EventType = iota
	// EventCompleted indicates a request has been checked
	EventCompleted
)

// Event represents progress during a batch run
type Event struct {
	Type    EventType
	Request models.Request
	Result  *models.Result // nil for Starting events
	Index   int            // request index in the dataset (0-based)
	Total   int            // total number of requests
}

// OnEvent is a callback for batch events. Calls are serialized.
type OnEvent func(event Event)

// Config holds batch configuration
type Config struct {
	Concurrency int    // Number of concurrent workers
	Seed        uint64 // Mock generation seed, 0 picks a random one
	CollectAll  bool   // Report every parameter violation
	Audit       bool   // Validate mocks against their schema
}

// DefaultConfig returns default batch configuration
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		Audit:       true,
	}
}

// Runner checks requests against the documents of a catalog
type Runner struct {
	config  Config
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewRunner creates a new runner
func NewRunner(config Config, cat *catalog.Catalog, logger *slog.Logger) *Runner {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{config: config, catalog: cat, logger: logger}
}

// worker owns one checker per document, since checkers carry a random
// source that must not be shared between goroutines
type worker struct {
	id       int
	runner   *Runner
	checkers map[string]*checker.Checker
}

func (w *worker) checkerFor(entry catalog.Entry) *checker.Checker {
	if c, ok := w.checkers[entry.Path]; ok {
		return c
	}

	opts := []checker.Option{
		checker.WithLogger(w.runner.logger.With("worker", w.id)),
		checker.WithCollectAll(w.runner.config.CollectAll),
		checker.WithAudit(w.runner.config.Audit),
	}
	if w.runner.config.Seed != 0 {
		opts = append(opts, checker.WithSeed(w.runner.config.Seed+uint64(w.id)))
	}

	c := checker.New(entry.Doc, opts...)
	w.checkers[entry.Path] = c
	return c
}

func (w *worker) run(req models.Request) models.Result {
	result := models.Result{Request: req}

	entry, ok := w.runner.catalog.Lookup(req.APIName)
	if !ok {
		result.Error = fmt.Sprintf("No matching OpenAPI spec found for %s", req.APIName)
		w.runner.logger.Warn("no spec for request", "api", req.APIName)
		return result
	}
	result.SpecFile = entry.Path

	startTime := time.Now()
	verdict := w.checkerFor(entry).Check(req)
	result.Duration = time.Since(startTime)
	result.Verdict = &verdict

	return result
}

// Run checks every request and returns the summary. Cancelling ctx stops
// dispatch; requests that were never checked are left out of the summary.
func (r *Runner) Run(ctx context.Context, requests []models.Request, onEvent OnEvent) models.Summary {
	startTime := time.Now()
	total := len(requests)

	results := make([]models.Result, total)
	done := make([]bool, total)
	jobs := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	emit := func(e Event) {
		if onEvent == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onEvent(e)
	}

	// Start workers
	for id := 0; id < r.config.Concurrency; id++ {
		w := &worker{id: id, runner: r, checkers: make(map[string]*checker.Checker)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				emit(Event{Type: EventStarting, Request: requests[i], Index: i, Total: total})
				res := w.run(requests[i])

				mu.Lock()
				results[i] = res
				done[i] = true
				mu.Unlock()

				emit(Event{Type: EventCompleted, Request: requests[i], Result: &res, Index: i, Total: total})
			}
		}()
	}

	// Send jobs
dispatch:
	for i := range requests {
		select {
		case <-ctx.Done():
			r.logger.Warn("batch cancelled", "dispatched", i, "total", total)
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)

	wg.Wait()

	summary := models.Summary{
		StatusCodes: make(map[int]int),
		Results:     make([]models.Result, 0, total),
	}
	for i := range results {
		if done[i] {
			summary.AddResult(results[i])
		}
	}
	summary.Latency = latency(summary.Results)
	summary.Finalize(time.Since(startTime))

	r.logger.Info("batch completed",
		"total", summary.TotalRequests,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duration", summary.TotalDuration)

	return summary
}

// latency calculates duration statistics over the checked requests
func latency(results []models.Result) models.Latency {
	var durations []time.Duration
	var totalDuration time.Duration
	for _, res := range results {
		if res.Verdict == nil {
			continue
		}
		durations = append(durations, res.Duration)
		totalDuration += res.Duration
	}

	var l models.Latency
	if len(durations) == 0 {
		return l
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	l.Min = durations[0]
	l.Max = durations[len(durations)-1]
	l.Avg = totalDuration / time.Duration(len(durations))
	l.P50 = percentile(durations, 50)
	l.P90 = percentile(durations, 90)
	l.P99 = percentile(durations, 99)
	return l
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}
