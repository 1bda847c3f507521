package crawler

import (
	"context"
	"net/http"
	"time"

	"github.com/zx197009220/findApi/internal/extractor"
	"github.com/zx197009220/findApi/internal/fetcher"
	"github.com/zx197009220/findApi/pkg/types"
)

func (r *Run) fetchWorker(ctx context.Context) error {
	for {
		task, err := r.requests.Get(ctx)
		if err != nil {
			return nil
		}
		if task == nil {
			r.requests.Done()
			r.requests.Put(nil)
			return nil
		}
		r.handleTask(ctx, *task)
	}
}

// handleTask turns one request-queue item into at most one outcome event
// and at most one page for the extraction pool. The page is queued before
// the task is marked done so the pipeline never looks idle in between.
func (r *Run) handleTask(ctx context.Context, task types.URLTask) {
	forwarded := false
	defer func() {
		if !forwarded {
			r.signalLive()
		}
		r.requests.Done()
	}()

	if task.Level() > r.engine.cfg.Crawl.MaxDepth {
		return
	}
	if !r.visited.MarkIfNotVisited(task.URL) {
		return
	}

	target, resp, forward, err := r.fetch(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ev := types.FetchError{
			Time:   time.Now(),
			URL:    target,
			Depth:  task.Depth,
			Origin: task.Origin,
			Rules:  task.Rules,
			Kind:   fetcher.Classify(err),
			Error:  err.Error(),
		}
		r.stats.Failures.Add(1)
		r.engine.requestLog.Failure(ev)
		r.logger.Debug("fetch failed", "url", target, "depth", task.Depth, "error", err)
		r.emitOutcome(ctx, ev)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	ev := types.FetchSuccess{
		Time:        time.Now(),
		URL:         target,
		Status:      resp.StatusCode,
		Depth:       task.Depth,
		Origin:      task.Origin,
		ContentType: contentType,
		Size:        len(resp.Body),
		Rules:       task.Rules,
	}
	r.stats.Successes.Add(1)
	r.engine.requestLog.Success(ev)
	r.emitOutcome(ctx, ev)
	if !forward {
		return
	}

	r.pages.Put(&types.Page{URL: target, Depth: task.Depth, Body: resp.Body})
	forwarded = true
}

// fetch performs the request plus the two follow-ups: a synthesized URL
// answering 404 or 500 is retried once without its injected context segment,
// and a 302 is followed by exactly one request to its Location. It returns
// the URL the final response belongs to and whether its body should be
// extracted. A follow-up whose target was already claimed is not sent; the
// task then reports its own response and forwards nothing.
func (r *Run) fetch(ctx context.Context, task types.URLTask) (string, *fetcher.Response, bool, error) {
	target := task.URL
	resp, err := r.engine.fetcher.Fetch(ctx, r.engine.request(target))
	if err != nil {
		return target, nil, false, err
	}

	if task.Origin == types.OriginFuzz &&
		(resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusInternalServerError) {
		if stripped := extractor.StripContext(target); stripped != target {
			if !r.visited.MarkIfNotVisited(stripped) {
				r.logger.Debug("fallback target already visited", "url", target, "fallback", stripped)
				return target, resp, false, nil
			}
			target = stripped
			resp, err = r.engine.fetcher.Fetch(ctx, r.engine.request(target))
			if err != nil {
				return target, nil, false, err
			}
		}
	}

	if resp.StatusCode == http.StatusFound {
		loc, lerr := resp.Location()
		if lerr != nil {
			return target, nil, false, lerr
		}
		if !r.visited.MarkIfNotVisited(loc) {
			r.logger.Debug("redirect target already visited", "url", target, "location", loc)
			return target, resp, false, nil
		}
		target = loc
		resp, err = r.engine.fetcher.Fetch(ctx, r.engine.request(target))
		if err != nil {
			return target, nil, false, err
		}
	}
	return target, resp, true, nil
}
