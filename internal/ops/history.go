package ops

import (
	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/manifest"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// HistoryOutput contains past render records, most recent first.
type HistoryOutput struct {
	Items      []manifest.Record `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// History lists previously rendered videos from the manifest.
func History(deps *Deps, input HistoryInput) (*HistoryOutput, error) {
	if deps.DB == nil {
		return nil, errors.NewInvalidRequest("render manifest is not available")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := manifest.List(deps.DB, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []manifest.Record{}
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
