package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/worker"
)

// Summary counts how each record of a run was resolved.
type Summary struct {
	Total  int                          `json:"total"`
	Method map[catalog.ResultMethod]int `json:"method"`
}

// RunAll enriches records with the configured number of workers and returns them in input
// order. It fails only when ctx is canceled or the options cannot be fingerprinted.
func (e *Engine) RunAll(ctx context.Context, records []catalog.Record) ([]catalog.Enriched, error) {
	total := len(records)
	process := func(ctx context.Context, idx int, rec catalog.Record) (catalog.Enriched, error) {
		return e.Enrich(ctx, idx+1, rec)
	}
	onResult := func(r worker.Result[catalog.Record, catalog.Enriched]) error {
		if r.Err != nil {
			return nil
		}
		e.log.Info("record enriched",
			zap.Int("index", r.Index+1),
			zap.Int("total", total),
			zap.String("name", r.Input.Name()),
			zap.String("domain", string(r.Output.DomainInfo.Domain)),
			zap.String("method", string(r.Output.Meta.Method)),
		)
		return nil
	}

	results, err := worker.ProcessAllWithCallback(ctx, records, process, onResult, worker.Options{
		Workers:       e.opts.Workers,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Enriched, len(results))
	for i, r := range results {
		out[i] = r.Output
	}
	return out, nil
}

// Summarize counts records per resolution method.
func Summarize(records []catalog.Enriched) Summary {
	s := Summary{Total: len(records), Method: map[catalog.ResultMethod]int{}}
	for _, r := range records {
		s.Method[r.Meta.Method]++
	}
	return s
}
