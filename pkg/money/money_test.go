package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMul_RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		factor float64
		want   int64
	}{
		{name: "exact", amount: 10000, factor: 0.6, want: 6000},
		{name: "half rounds to even down", amount: 25, factor: 0.5, want: 12}, // 12.5 -> 12
		{name: "half rounds to even up", amount: 35, factor: 0.5, want: 18},   // 17.5 -> 18
		{name: "negative half to even", amount: -25, factor: 0.5, want: -12},  // -12.5 -> -12
		{name: "ten percent", amount: 6000, factor: 0.10, want: 600},
		{name: "zero factor", amount: 1234, factor: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mul(tt.amount, tt.factor))
		})
	}
}

func TestFromDollars(t *testing.T) {
	assert.Equal(t, int64(6600), FromDollars(66.00))
	assert.Equal(t, int64(12), FromDollars(0.125)) // half to even
	assert.Equal(t, float64(66), Dollars(6600))
}
