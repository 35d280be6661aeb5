package enumerator

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/dnaindex/maws/bwtindex"
)

// Run drives a single-goroutine traversal of idx from its root to
// completion, returning the number of right-maximal strings visited
// (before length/frequency filtering). detector.Finalize is called once
// before Run returns.
func Run(idx *bwtindex.Index, params Params, detector Detector) uint64 {
	e := New(idx, params, detector)
	e.Run()
	detector.Finalize()
	return e.nTraversedNodes
}

// nWorkpackagesRate mirrors the original's N_WORKPACKAGES_RATE: the
// traversal aims to produce roughly this many work packages per thread,
// so that threads which finish early have other packages left to steal
// via the errgroup's bounded concurrency.
const nWorkpackagesRate = 2

// workpackageLength returns the string length at which the sequential
// prefix of a parallel traversal splits off independent work packages:
// ceil(log5(2*nThreads)), i.e. enough explicit left-extension levels
// (over the 5-symbol alphabet A,C,G,T,N) to produce at least
// nWorkpackagesRate*nThreads distinct subtrees.
func workpackageLength(nThreads int) int {
	if nThreads <= 0 {
		nThreads = 1
	}
	target := float64(nWorkpackagesRate * nThreads)
	if target <= 1 {
		return 1
	}
	return int(math.Ceil(math.Log(target) / math.Log(5)))
}

// RunParallel splits idx's traversal into work packages and runs them
// across up to nThreads goroutines, merging every work package's
// Detector into the root detector and finalizing each clone (and
// finally the root) exactly once. It returns the total number of
// right-maximal strings visited across every work package.
func RunParallel(ctx context.Context, idx *bwtindex.Index, params Params, detector Detector, nThreads int) (uint64, error) {
	if nThreads <= 1 {
		return Run(idx, params, detector), nil
	}

	root := New(idx, params, detector)
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
