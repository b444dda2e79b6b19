// Package grading scores milk composition against fixed quality standards.
package grading

import "github.com/mamadbah2/milkmatrix/internal/domain/models"

// Band holds composition bounds. Count based parameters only use Max.
type Band struct {
	Min    float64 `json:"min,omitempty"`
	Target float64 `json:"target,omitempty"`
	Max    float64 `json:"max"`
}

// Standards is the reference table used for scoring.
type Standards struct {
	Fat              Band `json:"fat"`
	Protein          Band `json:"protein"`
	Lactose          Band `json:"lactose"`
	SomaticCellCount Band `json:"somatic"`  // thousands/ml
	BacteriaCount    Band `json:"bacteria"` // CFU/ml
}

// DefaultStandards are the farm's quality thresholds. Lactose is reported to
// users but does not take part in grading.
var DefaultStandards = Standards{
	Fat:              Band{Min: 3.5, Target: 3.8, Max: 4.2},
	Protein:          Band{Min: 3.0, Target: 3.3, Max: 3.6},
	Lactose:          Band{Min: 4.5, Target: 4.8, Max: 5.0},
	SomaticCellCount: Band{Max: 200},
	BacteriaCount:    Band{Max: 20000},
}

const (
	targetTolerance = 0.1
	outerTolerance  = 0.3
)

// Params are the graded composition values; nil means not measured.
type Params struct {
	Fat              *float64 `json:"fat,omitempty"`
	Protein          *float64 `json:"protein,omitempty"`
	SomaticCellCount *float64 `json:"somatic_cell_count,omitempty"`
	BacteriaCount    *float64 `json:"bacteria_count,omitempty"`
}

// Any reports whether at least one parameter was measured.
func (p Params) Any() bool {
	return p.Fat != nil || p.Protein != nil || p.SomaticCellCount != nil || p.BacteriaCount != nil
}

// SubScores lists the 2..5 score of each measured parameter.
type SubScores struct {
	Fat              *int `json:"fat,omitempty"`
	Protein          *int `json:"protein,omitempty"`
	SomaticCellCount *int `json:"somatic_cell_count,omitempty"`
	BacteriaCount    *int `json:"bacteria_count,omitempty"`
}

// Result is a grade with the scores that produced it.
type Result struct {
	Grade   models.Grade `json:"grade"`
	Average float64      `json:"average"`
	Scores  SubScores    `json:"scores"`
}

// Engine grades against a Standards table.
type Engine struct {
	standards Standards
}

// NewEngine returns an engine for the given standards.
func NewEngine(standards Standards) *Engine {
	return &Engine{standards: standards}
}

// Standards returns the engine's table.
func (e *Engine) Standards() Standards {
	return e.standards
}

// Grade derives the quality grade for p.
func (e *Engine) Grade(p Params) models.Grade {
	return e.Evaluate(p).Grade
}

// Evaluate scores each measured parameter and maps the unweighted mean to a grade.
// With nothing measured the result is Good.
func (e *Engine) Evaluate(p Params) Result {
	if !p.Any() {
		return Result{Grade: models.GradeGood}
	}

	var res Result
	var total, n int

	add := func(dst **int, score int) {
		s := score
		*dst = &s
		total += score
		n++
	}

	if p.Fat != nil {
		add(&res.Scores.Fat, compositionScore(*p.Fat, e.standards.Fat))
	}
	if p.Protein != nil {
		add(&res.Scores.Protein, compositionScore(*p.Protein, e.standards.Protein))
	}
	if p.SomaticCellCount != nil {
		add(&res.Scores.SomaticCellCount, countScore(*p.SomaticCellCount, e.standards.SomaticCellCount.Max))
	}
	if p.BacteriaCount != nil {
		add(&res.Scores.BacteriaCount, countScore(*p.BacteriaCount, e.standards.BacteriaCount.Max))
	}

	res.Average = float64(total) / float64(n)
	res.Grade = gradeFor(res.Average)
	return res
}

// Grade grades p against DefaultStandards.
func Grade(p Params) models.Grade {
	return defaultEngine.Grade(p)
}

var defaultEngine = NewEngine(DefaultStandards)

func compositionScore(v float64, b Band) int {
	switch {
	case within(v, b.Target-targetTolerance, b.Target+targetTolerance):
		return 5
	case within(v, b.Min, b.Max):
		return 4
	case within(v, b.Min-outerTolerance, b.Max+outerTolerance):
		return 3
	default:
		return 2
	}
}

func countScore(v, max float64) int {
	switch {
	case v < max*0.6:
		return 5
	case v < max*0.8:
		return 4
	case v < max:
		return 3
	default:
		return 2
	}
}

// within compares with a small epsilon so that bounds such as 3.8-0.1 include
// the decimal the user typed.
func within(v, lo, hi float64) bool {
	const eps = 1e-9
	return v >= lo-eps && v <= hi+eps
}

func gradeFor(avg float64) models.Grade {
	switch {
	case avg >= 4.5:
		return models.GradeExcellent
	case avg >= 3.5:
		return models.GradeGood
	case avg >= 2.5:
		return models.GradeAverage
	default:
		return models.GradePoor
	}
}
