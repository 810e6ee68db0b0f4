package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meristem-data/cellclust/internal/cluster"
	"github.com/meristem-data/cellclust/internal/exprmat"
	"github.com/meristem-data/cellclust/internal/fsutil"
)

// Default aggregation settings.
const (
	DefaultIterations     = 100
	DefaultSampleFraction = 0.8
	DefaultMinSimilarity  = 0.5
)

// Options configures a consensus run.
type Options struct {
	// Iterations is the number of subsample clusterings; 0 means
	// DefaultIterations.
	Iterations int
	// SampleFraction of cells drawn (without replacement) per iteration;
	// 0 means DefaultSampleFraction.
	SampleFraction float64
	// Seed derives the per-iteration RNG as Seed+iteration, so results do
	// not depend on worker count or scheduling.
	Seed int64
	// Workers bounds pipeline parallelism; 0 means GOMAXPROCS.
	Workers int
	// MinSimilarity is the co-cluster ratio cutoff for the consensus
	// partition; 0 means DefaultMinSimilarity.
	MinSimilarity float64
	// RunDir, when set, receives one JSON artifact per iteration. A
	// pre-populated directory resumes: recorded iterations are replayed
	// instead of recomputed.
	RunDir string
	// FS backs RunDir access; nil means the real filesystem.
	FS fsutil.FileSystem
	// Store, when set, registers the run and its terminal status.
	Store *RunStore
}

func (o Options) withDefaults() Options {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.SampleFraction <= 0 || o.SampleFraction > 1 {
		o.SampleFraction = DefaultSampleFraction
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = DefaultMinSimilarity
	}
	if o.FS == nil {
		o.FS = fsutil.OSFileSystem{}
	}
	return o
}

// Aggregator runs the split pipeline over bootstrap subsamples and distills
// a consensus clustering from the co-cluster ratio matrix.
type Aggregator struct {
	Engine *cluster.SplitEngine
	Opts   Options
}

// Result is the outcome of a consensus run.
type Result struct {
	RunID string
	// Assignment is the consensus clustering over all input cells.
	Assignment cluster.Assignment
	// CoCluster is the symmetric co-cluster ratio matrix; entries for
	// never co-sampled pairs are NaN, the diagonal is 1.
	CoCluster *exprmat.Labeled
	// IterationsDone counts completed iterations, including any replayed
	// from artifacts.
	IterationsDone int
	// Markers and Medians come from the final expression-backed merge.
	Markers []string
	Medians *exprmat.Matrix
	// MergeWarning is set when the final merge hit its pass cap.
	MergeWarning *cluster.ConvergenceWarning
}

// Run executes the consensus pipeline. Cancellation is honored at iteration
// boundaries: on a cancelled context the returned Result still holds the
// matrix and consensus derived from the iterations that finished, alongside
// the context's error.
func (a *Aggregator) Run(ctx context.Context, m *exprmat.Matrix, cells []string) (*Result, error) {
	if a.Engine == nil {
		return nil, fmt.Errorf("consensus: aggregator missing split engine")
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("consensus: no cells to cluster")
	}
	opts := a.Opts.withDefaults()

	runID, err := a.registerRun(opts, len(cells))
	if err != nil {
		return nil, err
	}

	global := NewPairCounts()
	done, replayed, err := a.replayArtifacts(opts, global)
	if err != nil {
		return nil, err
	}
	if replayed > 0 {
		log.Printf("[Consensus] resumed %d iterations from %s", replayed, opts.RunDir)
	}

	var pending []int
	for i := 0; i < opts.Iterations; i++ {
		if !done[i] {
			pending = append(pending, i)
		}
	}

	tasks := make(chan int, len(pending))
	for _, i := range pending {
		tasks <- i
	}
	close(tasks)

	var (
		mu        sync.Mutex
		completed atomic.Int64
	)
	completed.Store(int64(replayed))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			local := NewPairCounts()
			defer func() {
				mu.Lock()
				global.Merge(local)
				mu.Unlock()
			}()
			for iter := range tasks {
				select {
				case <-gctx.Done():
					return nil // stop at the iteration boundary
				default:
				}
				if err := a.runIteration(opts, m, cells, iter, local); err != nil {
					return fmt.Errorf("iteration %d: %w", iter, err)
				}
				n := completed.Add(1)
				if opts.Store != nil {
					if err := opts.Store.UpdateProgress(runID, int(n)); err != nil {
						log.Printf("[Consensus] progress update failed: %v", err)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.finishRun(opts, runID, RunStatusFailed, int(completed.Load()), 0, err)
		return nil, err
	}

	iterationsDone := int(completed.Load())
	result, err := a.distill(m, cells, opts, global)
	if err != nil {
		a.finishRun(opts, runID, RunStatusFailed, iterationsDone, 0, err)
		return nil, err
	}
	result.RunID = runID
	result.IterationsDone = iterationsDone

	if ctxErr := ctx.Err(); ctxErr != nil {
		a.finishRun(opts, runID, RunStatusCancelled, iterationsDone, len(result.Assignment.IDs()), ctxErr)
		return result, ctxErr
	}
	a.finishRun(opts, runID, RunStatusDone, iterationsDone, len(result.Assignment.IDs()), nil)
	return result, nil
}

// runIteration draws one subsample, clusters it, records the pair counts
// and, when configured, persists the artifact.
func (a *Aggregator) runIteration(opts Options, m *exprmat.Matrix, cells []string, iter int, counts *PairCounts) error {
	rng := rand.New(rand.NewSource(opts.Seed + int64(iter)))
	sampled := subsample(cells, opts.SampleFraction, rng)

	assign, warnings, err := a.Engine.Run(m, sampled)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("[Consensus] iteration %d: %s", iter, w)
	}

	counts.Record(assign, sampled)
	if opts.RunDir == "" {
		return nil
	}
	return SaveIteration(opts.FS, opts.RunDir, IterationArtifact{
		Iteration:  iter,
		Sampled:    sampled,
		Assignment: assign,
	})
}

// distill turns the accumulated pair counts into the final clustering: an
// affinity partition over the ratio matrix, then an expression-backed merge.
func (a *Aggregator) distill(m *exprmat.Matrix, cells []string, opts Options, counts *PairCounts) (*Result, error) {
	ordered := append([]string(nil), cells...)
	sort.Strings(ordered)

	matrix, err := counts.Matrix(ordered)
	if err != nil {
		return nil, err
	}

	partitioner := &cluster.AffinityPartitioner{MinSimilarity: opts.MinSimilarity}
	labels, err := partitioner.Partition(matrix.Dense())
	if err != nil {
		return nil, err
	}

	assign := make(cluster.Assignment, len(ordered))
	for i, c := range ordered {
		assign[c] = labels[i] + 1
	}

	merger := &cluster.MergeEngine{Tester: a.Engine.Tester, Params: a.Engine.Params}
	merged, err := merger.Run(m, assign)
	if err != nil {
		return nil, err
	}

	return &Result{
		Assignment:   merged.Assignment,
		CoCluster:    matrix,
		Markers:      merged.Markers,
		Medians:      merged.Medians,
		MergeWarning: merged.Warning,
	}, nil
}

// registerRun inserts the run registry row when a store is configured.
func (a *Aggregator) registerRun(opts Options, cellCount int) (string, error) {
	if opts.Store == nil {
		return "", nil
	}
	params, err := json.Marshal(a.Engine.Params)
	if err != nil {
		return "", fmt.Errorf("marshal run params: %w", err)
	}
	run := &Run{
		Status:              RunStatusRunning,
		IterationsRequested: opts.Iterations,
		SampleFraction:      opts.SampleFraction,
		Seed:                opts.Seed,
		CellCount:           cellCount,
		ParamsJSON:          params,
	}
	if err := opts.Store.Insert(run); err != nil {
		return "", fmt.Errorf("register run: %w", err)
	}
	return run.RunID, nil
}

// finishRun records the terminal run status; failures here are logged, not
// returned, so they never mask the pipeline outcome.
func (a *Aggregator) finishRun(opts Options, runID, status string, iterations, clusters int, cause error) {
	if opts.Store == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := opts.Store.Finish(runID, status, iterations, clusters, msg); err != nil {
		log.Printf("[Consensus] finish run %s: %v", runID, err)
	}
}

// replayArtifacts folds previously persisted iterations into counts and
// reports which iteration indices are already covered.
func (a *Aggregator) replayArtifacts(opts Options, counts *PairCounts) (map[int]bool, int, error) {
	done := make(map[int]bool)
	if opts.RunDir == "" {
		return done, 0, nil
	}
	arts, err := LoadIterations(opts.FS, opts.RunDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return done, 0, nil
		}
		return nil, 0, err
	}
	for _, art := range arts {
		if art.Iteration >= opts.Iterations || done[art.Iteration] {
			continue
		}
		counts.Record(art.Assignment, art.Sampled)
		done[art.Iteration] = true
	}
	return done, len(done), nil
}

// subsample draws round(fraction*n) cells without replacement, at least one.
// The returned names are sorted so downstream code sees a canonical order.
func subsample(cells []string, fraction float64, rng *rand.Rand) []string {
	n := len(cells)
	k := int(math.Round(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	out := make([]string, k)
	for i, idx := range rng.Perm(n)[:k] {
		out[i] = cells[idx]
	}
	sort.Strings(out)
	return out
}
