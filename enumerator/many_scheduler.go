package enumerator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dnaindex/maws/bwtindex"
)

// RunMany drives a single-goroutine generalized traversal of idxs from
// its shared root to completion, returning the number of right-maximal
// strings visited. detector.Finalize is called once before RunMany
// returns.
func RunMany(idxs []*bwtindex.Index, params ManyParams, detector ManyDetector) (uint64, error) {
	e, err := NewMany(idxs, params, detector)
	if err != nil {
		return 0, err
	}
	e.Run()
	detector.Finalize()
	return e.nTraversedNodes, nil
}

// RunManyParallel is the generalized-traversal analogue of RunParallel:
// it splits the shared traversal into work packages at the same
// workpackageLength and merges each one's ManyDetector into detector.
func RunManyParallel(ctx context.Context, idxs []*bwtindex.Index, params ManyParams, detector ManyDetector, nThreads int) (uint64, error) {
	if nThreads <= 1 {
		return RunMany(idxs, params, detector)
	}

	root, err := NewMany(idxs, params, detector)
	if err != nil {
		return 0, err
	}
	root.workpackageLength = workpackageLength(nThreads)
	root.Run()

	packages := root.workpackages
	if len(packages) == 0 {
		detector.Finalize()
		return root.nTraversedNodes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nThreads)
	for _, wp := range packages {
		wp := wp
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			wp.Run()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := root.nTraversedNodes
	for _, wp := range packages {
		total += wp.nTraversedNodes
		detector.Merge(wp.detector)
		wp.detector.Finalize()
	}
	detector.Finalize()
	return total, nil
}
