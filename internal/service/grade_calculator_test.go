package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateGradeLetters(t *testing.T) {
	cases := []struct {
		name     string
		value    float64
		maxValue float64
		percent  float64
		letter   string
	}{
		{"perfect", 100, 100, 100, "A"},
		{"a boundary", 93, 100, 93, "A"},
		{"a minus", 92.9, 100, 92.9, "A-"},
		{"b plus", 87, 100, 87, "B+"},
		{"b", 83, 100, 83, "B"},
		{"b minus", 80, 100, 80, "B-"},
		{"c plus", 77, 100, 77, "C+"},
		{"c", 73, 100, 73, "C"},
		{"c minus", 70, 100, 70, "C-"},
		{"d plus", 67, 100, 67, "D+"},
		{"d", 63, 100, 63, "D"},
		{"d minus", 60, 100, 60, "D-"},
		{"fail", 59.9, 100, 59.9, "F"},
		{"zero", 0, 100, 0, "F"},
		{"scaled max", 18, 20, 90, "A-"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calc, err := CalculateGrade(tc.value, tc.maxValue)
			require.NoError(t, err)
			assert.InDelta(t, tc.percent, calc.Percentage, 0.0001)
			assert.Equal(t, tc.letter, calc.LetterGrade)
		})
	}
}

func TestCalculateGradeRejectsNonPositiveMax(t *testing.T) {
	_, err := CalculateGrade(50, 0)
	assert.Error(t, err)

	_, err = CalculateGrade(50, -10)
	assert.Error(t, err)
}

func TestCalculateGradeIdempotent(t *testing.T) {
	first, err := CalculateGrade(87.5, 100)
	require.NoError(t, err)
	second, err := CalculateGrade(87.5, 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLetterForPercentageMonotone(t *testing.T) {
	order := map[string]int{"A": 12, "A-": 11, "B+": 10, "B": 9, "B-": 8, "C+": 7, "C": 6, "C-": 5, "D+": 4, "D": 3, "D-": 2, "F": 1}
	previous := order[LetterForPercentage(100)]
	for p := 100.0; p >= 0; p -= 0.5 {
		current := order[LetterForPercentage(p)]
		assert.LessOrEqual(t, current, previous, "letter rank must not increase as percentage drops (p=%v)", p)
		previous = current
	}
}
