package models

import "strings"

// Grade is the qualitative milk quality label.
type Grade string

const (
	GradePoor      Grade = "Poor"
	GradeAverage   Grade = "Average"
	GradeGood      Grade = "Good"
	GradeExcellent Grade = "Excellent"
)

// ParseGrade maps a caller supplied label onto a Grade. "Fair" is accepted as
// the mobile form's name for Average.
func ParseGrade(label string) (Grade, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "poor":
		return GradePoor, true
	case "average", "fair":
		return GradeAverage, true
	case "good":
		return GradeGood, true
	case "excellent":
		return GradeExcellent, true
	default:
		return "", false
	}
}
