package ops

import (
	"context"
	"time"
)

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	Archive string
	Cutoff  time.Time // optional: skip sessions starting before this
}

// ScanOutput reports what an archive scan found.
type ScanOutput struct {
	Frames   int        `json:"frames"`
	Sessions int        `json:"sessions"`
	Skipped  int        `json:"skipped_sessions"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// Scan builds the archive index and reports its shape without rendering
// anything. Useful for verifying the naming convention and metadata health
// before a long batch run.
func Scan(ctx context.Context, deps *Deps, input ScanInput) (*ScanOutput, error) {
	idx, err := buildIndex(ctx, deps, input.Archive, input.Cutoff)
	if err != nil {
		return nil, err
	}

	out := &ScanOutput{
		Frames:   idx.Len(),
		Sessions: idx.Sessions,
		Skipped:  idx.Skipped,
	}
	if start, end, ok := idx.Span(); ok {
		out.Start = &start
		out.End = &end
	}
	return out, nil
}
