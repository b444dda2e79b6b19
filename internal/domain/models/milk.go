package models

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for record dates.
const DateLayout = "2006-01-02"

// Shift is the milking session label.
type Shift string

const (
	ShiftMorning Shift = "Morning"
	ShiftEvening Shift = "Evening"
)

// ParseShift normalizes a shift label, ignoring case.
func ParseShift(value string) (Shift, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "morning":
		return ShiftMorning, true
	case "evening":
		return ShiftEvening, true
	default:
		return "", false
	}
}

// MilkRecord is one collection of milk for a cow. At most one record exists per
// (CowID, Date, Shift).
type MilkRecord struct {
	ID               string      `json:"id" bson:"_id"`
	CowID            string      `json:"cow_id" bson:"cow_id"`
	Date             string      `json:"date" bson:"date"`
	Shift            Shift       `json:"shift" bson:"shift"`
	Amount           float64     `json:"amount" bson:"amount"`
	Quality          Grade       `json:"quality" bson:"quality"`
	QualityGrade     Grade       `json:"quality_grade" bson:"quality_grade"`
	Fat              *float64    `json:"fat" bson:"fat"`
	Protein          *float64    `json:"protein" bson:"protein"`
	Lactose          *float64    `json:"lactose" bson:"lactose"`
	SomaticCellCount *int64      `json:"somatic_cell_count" bson:"somatic_cell_count"`
	BacteriaCount    *int64      `json:"bacteria_count" bson:"bacteria_count"`
	Notes            string      `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt        time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	Cow              *CowSummary `json:"cow,omitempty" bson:"-"`
}

// ExistingRecord identifies the record that blocked a duplicate insert.
type ExistingRecord struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Shift  Shift   `json:"shift"`
	Date   string  `json:"date"`
}

// Existing returns the conflict descriptor for the record.
func (r MilkRecord) Existing() *ExistingRecord {
	return &ExistingRecord{ID: r.ID, Amount: r.Amount, Shift: r.Shift, Date: r.Date}
}

// MilkSummary aggregates production over a window.
type MilkSummary struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	TotalQuantity  float64   `json:"total_quantity"`
	AverageFat     float64   `json:"average_fat"`
	AverageProtein float64   `json:"average_protein"`
	RecordCount    int       `json:"record_count"`
}
