package checks

import (
	"context"
	"fmt"
)

// Counter counts the records of a type on one side.
type Counter interface {
	Count(ctx context.Context, recordType string) (int64, error)
}

// CountReport compares record totals per type.
type CountReport struct {
	Matched bool                 `json:"matched"`
	Types   map[string]TypeCount `json:"types"`
	Errors  []string             `json:"errors"`
}

type TypeCount struct {
	Local      int64 `json:"local"`
	Remote     int64 `json:"remote"`
	Difference int64 `json:"difference"`
}

// CheckCounts counts every type on both sides. A type that fails to count is
// reported as an error and does not stop the others.
func CheckCounts(ctx context.Context, local, remote Counter, types []string) *CountReport {
	report := &CountReport{
		Matched: true,
		Types:   make(map[string]TypeCount, len(types)),
		Errors:  []string{},
	}
	for _, t := range types {
		l, err := local.Count(ctx, t)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("local %s: %v", t, err))
			report.Matched = false
			continue
		}
		r, err := remote.Count(ctx, t)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remote %s: %v", t, err))
			report.Matched = false
			continue
		}
		tc := TypeCount{Local: l, Remote: r, Difference: r - l}
		if tc.Difference != 0 {
			report.Matched = false
		}
		report.Types[t] = tc
	}
	return report
}
