package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Bridge is anything that can run alongside a simulation until cancelled.
// *advisor.Advisor implements it.
type Bridge interface {
	Run(ctx context.Context) error
}

// RunClosedLoop runs s with bridge serving it in-process. The bridge is
// stopped once the simulation returns, whatever the outcome.
func RunClosedLoop(ctx context.Context, s *Simulator, bridge Bridge) (*Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	bridgeCtx, stopBridge := context.WithCancel(gctx)
	defer stopBridge()

	g.Go(func() error { return bridge.Run(bridgeCtx) })

	var stats *Stats
	g.Go(func() error {
		defer stopBridge()
		var err error
		stats, err = s.Run(gctx)
		return err
	})

	err := g.Wait()
	return stats, err
}
