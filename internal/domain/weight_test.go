package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestClassifyWeight(t *testing.T) {
	min := ptr(900)
	max := ptr(950)

	tests := []struct {
		name     string
		measured float64
		min      *float64
		max      *float64
		want     WeightResult
	}{
		{"below minimum", 880, min, max, WeightUnderweight},
		{"within limits", 920, min, max, WeightPass},
		{"above maximum", 980, min, max, WeightOverweight},
		{"exactly at minimum", 900, min, max, WeightPass},
		{"exactly at maximum", 950, min, max, WeightPass},
		{"no limits configured", 880, nil, nil, WeightNoLimit},
		{"no limits configured heavy", 10000, nil, nil, WeightNoLimit},
		{"only minimum, below", 880, min, nil, WeightUnderweight},
		{"only minimum, above", 5000, min, nil, WeightPass},
		{"only maximum, above", 980, nil, max, WeightOverweight},
		{"only maximum, below", 1, nil, max, WeightPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyWeight(tt.measured, tt.min, tt.max))
		})
	}
}

func TestClassHasWeightLimit(t *testing.T) {
	assert.False(t, (&Class{}).HasWeightLimit())
	assert.True(t, (&Class{MinWeight: ptr(900)}).HasWeightLimit())
	assert.True(t, (&Class{MaxWeight: ptr(950)}).HasWeightLimit())

	var nilClass *Class
	assert.False(t, nilClass.HasWeightLimit())
}
