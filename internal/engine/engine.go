package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"gosuperior/domain/posterior"
	"gosuperior/domain/superior"
	"gosuperior/domain/trial"
	"gosuperior/internal"
	"gosuperior/internal/identity"
	postaccess "gosuperior/internal/posterior"

	"golang.org/x/sync/errgroup"
)

// Input is everything one estimation consumes.
type Input struct {
	Observations []trial.Observation
	Posterior    *posterior.SampleSet
	Spec         superior.SelectionSpec
	UseRegion    bool
}

// Engine estimates probabilities of superior performance from posterior
// draws. It holds no state between calls.
type Engine struct {
	workers int
	logger  *internal.Logger
}

// New creates an engine running at most workers goroutines; workers <= 0
// means GOMAXPROCS.
func New(workers int, logger *internal.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{workers: workers, logger: logger}
}

// Run validates every precondition, then estimates. Nothing is sampled until
// the selection spec, identity index and posterior accessor are all valid.
func (e *Engine) Run(ctx context.Context, in Input) (*superior.Result, error) {
	if err := in.Spec.Validate(); err != nil {
		return nil, err
	}
	idx, err := identity.Build(in.Observations, in.UseRegion)
	if err != nil {
		return nil, err
	}
	acc, err := postaccess.NewAccessor(idx, in.Posterior)
	if err != nil {
		return nil, err
	}
	return e.Estimate(ctx, idx, acc, in.Spec)
}

// Estimate folds every posterior sample into per-worker tallies, merges them
// and reduces the merged counts. A cancelled context aborts the whole
// estimate; an estimate over fewer than S samples is never returned.
func (e *Engine) Estimate(ctx context.Context, idx *identity.Index, acc *postaccess.Accessor, spec superior.SelectionSpec) (*superior.Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	nG, nE, nS := idx.NumGenotypes(), idx.NumEnvironments(), acc.Samples()
	workers := e.workers
	if workers > nS {
		workers = nS
	}

	e.logger.Info("[Engine] Estimating %d genotypes x %d environments (regions: %d) over %d samples, intensity %.3f, increase %t, %d workers",
		nG, nE, idx.NumRegions(), nS, spec.Intensity, spec.Increase, workers)
	start := time.Now()

	composer := NewComposer(idx, acc)
	parts := make([]*tally, workers)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		lo, hi := w*nS/workers, (w+1)*nS/workers
		g.Go(func() error {
			t := newTally(nG, nE)
			sel, err := NewSelector(spec, nG)
			if err != nil {
				return err
			}
			buf := make([]float64, nG*nE)
			indicator := make([]bool, nG)

			for s := lo; s < hi; s++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				composer.Compose(s, buf)
				for k := 0; k < nE; k++ {
					sel.Select(composer.Column(buf, k), indicator)
					t.addColumn(k, indicator)
				}
				sel.Select(acc.MainSample(s), indicator)
				t.addMarginal(indicator)
				t.samples++
			}
			parts[w] = t
			e.logger.Trace("[Engine] worker %d folded samples [%d, %d)", w, lo, hi)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn("[Engine] Estimation aborted: %v", err)
		return nil, fmt.Errorf("estimation aborted before all %d samples were folded: %w", nS, err)
	}

	total := merge(parts)
	if total.samples != nS {
		return nil, fmt.Errorf("folded %d of %d samples", total.samples, nS)
	}

	result := assemble(idx, acc, spec, reduce(idx, total))
	e.logger.Info("[Engine] Estimation complete in %v (%d masked cells)", time.Since(start), result.GxE.MissingCount())
	return result, nil
}
