package prompt

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/apiprompt/pkg/types"
)

// GenerateAll renders every endpoint concurrently. The result keeps the input
// order. It stops early when ctx is cancelled.
func (g *Generator) GenerateAll(ctx context.Context, endpoints []*types.Endpoint) ([]string, error) {
	out := make([]string, len(endpoints))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range endpoints {
		if gctx.Err() != nil {
			break
		}
		i, e := i, e
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = g.Generate(e)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
