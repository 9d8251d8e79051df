package formservice

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"onboarding-forms/internal/patch"
)

// ProductStatus is the per-product result of a broadcast.
type ProductStatus string

const (
	StatusApplied ProductStatus = "applied"
	StatusFailed  ProductStatus = "failed"
	StatusSkipped ProductStatus = "skipped"
)

// ProductResult is one product's line in a BatchReport.
type ProductResult struct {
	ProductID string        `json:"productId"`
	Status    ProductStatus `json:"status"`
	Version   int           `json:"version,omitempty"`
	Outcome   patch.Outcome `json:"outcome"`
	Error     string        `json:"error,omitempty"`
}

// BatchReport summarizes a snippet applied to every product. Products are
// independent: a failure on one never undoes another.
type BatchReport struct {
	Applied int             `json:"applied"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Results []ProductResult `json:"results"`
}

// Broadcast applies snippet to every product that has a live document. Once
// ctx is done no new product is started; products not yet started are
// reported as skipped and committed ones stay committed.
func (s *Service) Broadcast(ctx context.Context, snippet patch.Snippet, author string) (BatchReport, error) {
	ids, err := s.store.ListProductIDs(ctx)
	if err != nil {
		return BatchReport{}, err
	}

	results := make([]ProductResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, id := range ids {
		if ctx.Err() != nil {
			results[i] = ProductResult{ProductID: id, Status: StatusSkipped, Error: ctx.Err().Error()}
			continue
		}
		i, id := i, id
		g.Go(func() error {
			r := ProductResult{ProductID: id}
			if err := ctx.Err(); err != nil {
				r.Status, r.Error = StatusSkipped, err.Error()
			} else if res, err := s.ApplySnippet(ctx, id, snippet, author); err != nil {
				r.Status, r.Outcome, r.Error = StatusFailed, res.Outcome, err.Error()
				if res.Entry.VersionNumber == 0 && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
					r.Status = StatusSkipped
				}
			} else {
				r.Status, r.Outcome, r.Version = StatusApplied, res.Outcome, res.Entry.VersionNumber
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusApplied:
			report.Applied++
		case StatusFailed:
			report.Failed++
		case StatusSkipped:
			report.Skipped++
		}
	}
	s.log.Info().
		Str("kind", string(snippet.Kind)).
		Int("applied", report.Applied).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("broadcast snippet")
	return report, nil
}
