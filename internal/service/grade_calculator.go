package service

import (
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// GradeCalculation holds the derived fields of a scored item.
type GradeCalculation struct {
	Percentage  float64
	LetterGrade string
}

// letterThresholds is evaluated highest-first; the first matching entry wins.
var letterThresholds = []struct {
	Min    float64
	Letter string
}{
	{93, "A"},
	{90, "A-"},
	{87, "B+"},
	{83, "B"},
	{80, "B-"},
	{77, "C+"},
	{73, "C"},
	{70, "C-"},
	{67, "D+"},
	{63, "D"},
	{60, "D-"},
}

// CalculateGrade derives the percentage and letter grade for a raw score.
// Pure and deterministic; callers must re-invoke it whenever the value or
// max value changes so the derived fields never go stale.
func CalculateGrade(value, maxValue float64) (GradeCalculation, error) {
	if maxValue <= 0 {
		return GradeCalculation{}, appErrors.Clone(appErrors.ErrValidation, "max value must be greater than zero")
	}
	percentage := value / maxValue * 100
	return GradeCalculation{Percentage: percentage, LetterGrade: LetterForPercentage(percentage)}, nil
}

// LetterForPercentage maps a percentage to its letter grade.
func LetterForPercentage(percentage float64) string {
	for _, threshold := range letterThresholds {
		if percentage >= threshold.Min {
			return threshold.Letter
		}
	}
	return "F"
}
