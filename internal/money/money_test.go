package money

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Split(t *testing.T) {
	c := Default()

	tests := []struct {
		name       string
		total      float64
		amount     int64
		commission int64
		payout     int64
	}{
		{"round thousand", 1000.00, 100000, 10000, 90000},
		{"cents", 123.40, 12340, 1234, 11106},
		{"zero", 0, 0, 0, 0},
		{"one cent", 0.01, 1, 0, 1},
		{"float drift", 19.99, 1999, 200, 1799},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := c.Split(tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.amount, s.AmountCents)
			assert.Equal(t, tt.commission, s.CommissionCents)
			assert.Equal(t, tt.payout, s.PayoutCents)
			assert.True(t, s.Balanced())
		})
	}
}

func TestCalculator_SplitAlwaysBalanced(t *testing.T) {
	c := Default()
	for cents := int64(0); cents < 5000; cents += 7 {
		total := float64(cents) / 100
		s, err := c.Split(total)
		require.NoError(t, err)
		require.True(t, s.Balanced(), "total %v", total)
		require.Equal(t, int64(math.Round(total*0.10*100)), s.CommissionCents)
	}
}

func TestCalculator_SplitInvalid(t *testing.T) {
	c := Default()
	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := c.Split(v)
		assert.Error(t, err)
	}
}

func TestCalculator_HoldUntil(t *testing.T) {
	c := Default()
	event := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC), c.HoldUntil(event))

	offset := time.FixedZone("UTC+3", 3*3600)
	assert.True(t, c.HoldUntil(event.In(offset)).Equal(time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC)))
}

func TestNewCalculator(t *testing.T) {
	c, err := NewCalculator(0.15, 48)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, c.HoldPeriod)

	s, err := c.Split(200)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), s.CommissionCents)

	_, err = NewCalculator(1, 72)
	assert.Error(t, err)
	_, err = NewCalculator(0.1, -1)
	assert.Error(t, err)
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(1999), ToCents(19.99))
	assert.InDelta(t, 19.99, FromCents(1999), 1e-9)
}
