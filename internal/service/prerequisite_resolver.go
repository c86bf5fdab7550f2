package service

import "sort"

// PassingFinalGrade is the 0-100 final grade at which a completed course
// counts as passed: a grade point of 2.0 on the 4-point scale. Domain
// constant, not configurable.
const PassingFinalGrade = 50.0

// gradePointDivisor maps a 0-100 final grade onto the 0-4 grade point scale.
const gradePointDivisor = 25.0

// PrerequisiteCheck reports whether a prerequisite set is satisfied and
// which course IDs remain unmet, for diagnostic messages.
type PrerequisiteCheck struct {
	Satisfied bool
	Unmet     []string
}

// ResolvePrerequisites checks a course's prerequisite set against a
// student's passed-course set. No side effects.
func ResolvePrerequisites(prerequisites []string, passedCourseIDs []string) PrerequisiteCheck {
	if len(prerequisites) == 0 {
		return PrerequisiteCheck{Satisfied: true}
	}

	passed := make(map[string]struct{}, len(passedCourseIDs))
	for _, id := range passedCourseIDs {
		passed[id] = struct{}{}
	}

	var unmet []string
	for _, id := range prerequisites {
		if _, ok := passed[id]; !ok {
			unmet = append(unmet, id)
		}
	}
	sort.Strings(unmet)
	return PrerequisiteCheck{Satisfied: len(unmet) == 0, Unmet: unmet}
}
