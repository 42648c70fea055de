package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter map[string]int64

func (c counter) Count(_ context.Context, recordType string) (int64, error) {
	n, ok := c[recordType]
	if !ok {
		return 0, errors.New("unknown type")
	}
	return n, nil
}

func TestCheckCounts(t *testing.T) {
	ctx := context.Background()

	t.Run("matched", func(t *testing.T) {
		report := CheckCounts(ctx, counter{"Lead": 3}, counter{"Lead": 3}, []string{"Lead"})
		assert.True(t, report.Matched)
		assert.Equal(t, TypeCount{Local: 3, Remote: 3}, report.Types["Lead"])
	})

	t.Run("difference and errors", func(t *testing.T) {
		local := counter{"Lead": 3, "Contact": 1}
		remote := counter{"Lead": 5}
		report := CheckCounts(ctx, local, remote, []string{"Contact", "Lead", "Account"})

		assert.False(t, report.Matched)
		assert.Equal(t, TypeCount{Local: 3, Remote: 5, Difference: 2}, report.Types["Lead"])
		assert.Len(t, report.Errors, 2)
		assert.NotContains(t, report.Types, "Contact")
	})
}
