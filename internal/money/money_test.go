package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyPercentage(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		percent string
		want    int64
	}{
		{name: "whole percent", amount: 10000, percent: "15", want: 1500},
		{name: "fractional percent floors", amount: 100, percent: "0.1", want: 0},
		{name: "processor rate", amount: 10000, percent: "2.9", want: 290},
		{name: "processor rate floors", amount: 999, percent: "2.9", want: 28},
		{name: "zero percent", amount: 12345, percent: "0", want: 0},
		{name: "full amount", amount: 12345, percent: "100", want: 12345},
		{name: "never rounds up", amount: 199, percent: "50", want: 99},
		{name: "zero amount", amount: 0, percent: "42", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPercentage(tt.amount, decimal.RequireFromString(tt.percent))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentage(t *testing.T) {
	assert.True(t, decimal.NewFromInt(20).Equal(Percentage(20, 100)))
	assert.True(t, decimal.RequireFromString("33.33").Equal(Percentage(1, 3)))
	assert.True(t, decimal.Zero.Equal(Percentage(5, 0)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int64(0), Clamp(-5, 0, 10))
	assert.Equal(t, int64(10), Clamp(15, 0, 10))
	assert.Equal(t, int64(7), Clamp(7, 0, 10))
}
