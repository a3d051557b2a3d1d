package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeSavings(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		s := SummarizeSavings(nil)
		assert.Zero(t, s.TotalSaved)
		assert.Zero(t, s.CouponsUsed)
		assert.Nil(t, s.LastAppliedAt)
	})

	t.Run("applied only", func(t *testing.T) {
		s := SummarizeSavings([]Usage{
			{DiscountAmount: 1200, AppliedAt: base, Status: UsageApplied},
			{DiscountAmount: 750, AppliedAt: base.Add(72 * time.Hour), Status: UsageReverted},
			{DiscountAmount: 500, AppliedAt: base.Add(24 * time.Hour), Status: UsageApplied},
		})

		assert.Equal(t, int64(1700), s.TotalSaved)
		assert.Equal(t, 2, s.CouponsUsed)
		require.NotNil(t, s.LastAppliedAt)
		assert.Equal(t, base.Add(24*time.Hour), *s.LastAppliedAt)
	})
}
