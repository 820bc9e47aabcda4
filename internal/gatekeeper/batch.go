package gatekeeper

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one query in a batch.
type BatchItem struct {
	Result *Result
	Err    error
}

// RetrieveBatch runs queries concurrently, at most limit at a time, each
// against its own snapshot from src. Per-query failures land in the
// matching item; the returned error is only the context's.
func (p *Pipeline) RetrieveBatch(ctx context.Context, src Source, queries []Query, limit int) ([]BatchItem, error) {
	items := make([]BatchItem, len(queries))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			res, err := p.Run(ctx, src, q)
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	g.Wait()

	return items, ctx.Err()
}
