// Package worker renders regions and tiles in parallel.
package worker

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
)

// Generator renders one task. Generators hold render caches and are used
// by a single worker goroutine only.
type Generator interface {
	Generate(ctx context.Context, task Task) (*image.NRGBA, error)
}

// CacheReporter is implemented by generators whose basis memoises feature
// points. The counters are cumulative over the generator's lifetime.
type CacheReporter interface {
	CacheStats() (basis.CacheStats, bool)
}

// Factory creates the generator of one worker.
type Factory func() (Generator, error)

// Task is one unit of work: a region of the output buffer, or a map tile.
type Task struct {
	Region image.Rectangle
	Coords tile.Coords
}

func (t Task) String() string {
	if t.Region.Empty() {
		return t.Coords.String()
	}
	return t.Region.String()
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Image   *image.NRGBA
	Err     error
	Elapsed time.Duration
	// Cache holds the point cache lookups made by this task alone. It is
	// zero for lattice bases.
	Cache basis.CacheStats
}

// ProgressFunc is called after each task completes with its result and
// the running counts.
type ProgressFunc func(last Result, completed, total, failed int)

// ResultFunc receives each result as it arrives. Calls are serialised.
type ResultFunc func(Result)

// Config configures the worker pool.
type Config struct {
	Workers      int
	NewGenerator Factory
	OnProgress   ProgressFunc
	// OnResult, when set, receives the results instead of Run collecting
	// them.
	OnResult ResultFunc
}

// Pool manages parallel rendering.
type Pool struct {
	workers      int
	newGenerator Factory
	onProgress   ProgressFunc
	onResult     ResultFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:      workers,
		newGenerator: cfg.NewGenerator,
		onProgress:   cfg.OnProgress,
		onResult:     cfg.OnResult,
	}
}

// Run executes all tasks and returns their results, or nil when OnResult
// consumes them. It blocks until all tasks complete or the context is
// cancelled; tasks not started before cancellation report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	var results []Result
	if p.onResult == nil {
		results = make([]Result, 0, len(tasks))
	}
	done := make(chan struct{})

	go func() {
		completed, failed := 0, 0
		for result := range resultCh {
			completed++
			if result.Err != nil {
				failed++
			}

			if p.onResult != nil {
				p.onResult(result)
			} else {
				results = append(results, result)
			}

			if p.onProgress != nil {
				p.onProgress(result, completed, len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

// worker builds its own generator and processes tasks until the channel
// is drained.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	gen, err := p.newGenerator()
	if err != nil {
		err = fmt.Errorf("failed to create generator: %w", err)
	}

	for task := range tasks {
		if err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			results <- Result{Task: task, Err: ctx.Err()}
			continue
		default:
		}

		before := cacheStats(gen)
		start := time.Now()
		img, genErr := gen.Generate(ctx, task)
		results <- Result{
			Task:    task,
			Image:   img,
			Err:     genErr,
			Elapsed: time.Since(start),
			Cache:   cacheStats(gen).Since(before),
		}
	}
}

func cacheStats(gen Generator) basis.CacheStats {
	if cr, ok := gen.(CacheReporter); ok {
		if stats, ok := cr.CacheStats(); ok {
			return stats
		}
	}
	return basis.CacheStats{}
}

// Split divides bounds into tiles of at most size x size pixels, row by row.
func Split(bounds image.Rectangle, size int) []Task {
	if size <= 0 || bounds.Empty() {
		return nil
	}
	var tasks []Task
	for y := bounds.Min.Y; y < bounds.Max.Y; y += size {
		for x := bounds.Min.X; x < bounds.Max.X; x += size {
			r := image.Rect(x, y, x+size, y+size).Intersect(bounds)
			tasks = append(tasks, Task{Region: r})
		}
	}
	return tasks
}

// Errors returns the first error among results and the number of failures.
func Errors(results []Result) (first error, failed int) {
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if first == nil {
			first = fmt.Errorf("%s: %w", r.Task, r.Err)
		}
		failed++
	}
	return first, failed
}
