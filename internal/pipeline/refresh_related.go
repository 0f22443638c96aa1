package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/runtime"
)

// RefreshRelatedParams is the params payload a refresh-related task is
// spawned with.
type RefreshRelatedParams struct {
	UserID int64 `json:"userId"`
	LinkID int64 `json:"linkId"`
}

// refreshRelatedResult is the final return value of a completed
// refresh-related task.
type refreshRelatedResult struct {
	Status models.LinkStatus `json:"status"`
}

func newRefreshRelatedHandler(deps Dependencies) runtime.Handler {
	return func(ctx context.Context, step *runtime.StepContext, raw json.RawMessage) (any, error) {
		var params RefreshRelatedParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("pipeline: unmarshaling refresh-related params: %w", err)
		}

		link, err := deps.Store.GetLink(ctx, params.UserID, params.LinkID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: fetching link: %w", err)
		}

		vec := link.Vector
		if len(vec) == 0 {
			vec, err = runtime.Step(ctx, step, "embed", func(ctx context.Context) ([]float32, error) {
				return deps.embed(ctx, params.UserID, params.LinkID)
			})
			if handled, result, err := handleStepOutcome(ctx, deps.Store, params.LinkID, err); handled {
				return result, err
			}
		}

		relatedLinks, err := runtime.Step(ctx, step, "related", func(ctx context.Context) ([]models.RelatedLink, error) {
			return deps.related(ctx, params.UserID, params.LinkID, vec)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, params.LinkID, err); handled {
			return result, err
		}

		summary := ""
		if link.Summary != nil {
			summary = *link.Summary
		}
		_, err = runtime.Step(ctx, step, "insight", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, deps.insight(ctx, params.UserID, params.LinkID, link.URL, summary, relatedLinks)
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, params.LinkID, err); handled {
			return result, err
		}

		_, err = runtime.Step(ctx, step, "export", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		if handled, result, err := handleStepOutcome(ctx, deps.Store, params.LinkID, err); handled {
			return result, err
		}

		return refreshRelatedResult{Status: models.LinkStatusAnalyzed}, nil
	}
}
