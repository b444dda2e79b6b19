package models

import (
	"strings"
	"time"
)

// EventType classifies a health event.
type EventType string

const (
	EventVaccination    EventType = "Vaccination"
	EventIllness        EventType = "Illness"
	EventInjury         EventType = "Injury"
	EventPregnancyCheck EventType = "Pregnancy Check"
	EventBreeding       EventType = "Breeding"
	EventTreatment      EventType = "Treatment"
	EventRoutineCheck   EventType = "Routine Check"
	EventOther          EventType = "Other"
)

// EventTypes lists the accepted event types in display order.
var EventTypes = []EventType{
	EventVaccination,
	EventIllness,
	EventInjury,
	EventPregnancyCheck,
	EventBreeding,
	EventTreatment,
	EventRoutineCheck,
	EventOther,
}

// ParseEventType matches a label against EventTypes, ignoring case.
func ParseEventType(value string) (EventType, bool) {
	value = strings.TrimSpace(value)
	for _, t := range EventTypes {
		if strings.EqualFold(string(t), value) {
			return t, true
		}
	}
	return "", false
}

// HealthStatus is the lifecycle state of a health event.
type HealthStatus string

const (
	StatusPending   HealthStatus = "pending"
	StatusCompleted HealthStatus = "completed"
	StatusUrgent    HealthStatus = "urgent"
	StatusCancelled HealthStatus = "cancelled"
)

// AlertStatuses are the statuses surfaced as health alerts.
var AlertStatuses = []HealthStatus{StatusPending, StatusUrgent}

// ParseHealthStatus normalizes a status label.
func ParseHealthStatus(value string) (HealthStatus, bool) {
	switch HealthStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusUrgent:
		return StatusUrgent, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// Medication is a single treatment entry on a health event.
type Medication struct {
	Name string `json:"name" bson:"name"`
}

// HealthRecord documents a veterinary or care action on a cow.
type HealthRecord struct {
	ID          string       `json:"id" bson:"_id"`
	CowID       string       `json:"cow_id" bson:"cow_id"`
	EventType   EventType    `json:"event_type" bson:"event_type"`
	EventDate   string       `json:"event_date" bson:"event_date"`
	Status      HealthStatus `json:"status" bson:"status"`
	Description string       `json:"description" bson:"description"`
	Medications []Medication `json:"medications" bson:"medications"`
	PerformedBy string       `json:"performed_by" bson:"performed_by"`
	Notes       string       `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	Cow         *CowSummary  `json:"cow,omitempty" bson:"-"`
}
