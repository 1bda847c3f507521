package crawler

import (
	"context"

	"github.com/zx197009220/findApi/pkg/types"
)

func (r *Run) extractWorker(ctx context.Context) error {
	for {
		page, err := r.pages.Get(ctx)
		if err != nil {
			return nil
		}
		if page == nil {
			r.pages.Done()
			r.pages.Put(nil)
			return nil
		}
		r.handlePage(ctx, page)
	}
}

// handlePage extracts children from one body. Children reach the request
// queue before the page is marked done.
func (r *Run) handlePage(ctx context.Context, page *types.Page) {
	defer r.pages.Done()

	res := r.engine.extractor.Extract(*page)
	r.signalLive()

	for _, ev := range res.Exclusions {
		r.emitExclusion(ctx, ev)
	}
	for i := range res.Children {
		child := res.Children[i]
		r.requests.Put(&child)
	}
	r.logger.Debug("page extracted", "url", page.URL, "depth", page.Depth,
		"children", len(res.Children), "exclusions", len(res.Exclusions))
}
