package models

// Cow is registered outside of this service and is read-only here.
type Cow struct {
	ID          string `json:"id" bson:"_id"`
	TagNumber   string `json:"tag_number" bson:"tag_number"`
	Name        string `json:"name" bson:"name"`
	Breed       string `json:"breed,omitempty" bson:"breed,omitempty"`
	IsCalf      bool   `json:"is_calf" bson:"is_calf"`
	DateOfBirth string `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty"`
	Notes       string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// CowSummary is the short cow reference attached to record listings.
type CowSummary struct {
	TagNumber string `json:"tag_number" bson:"tag_number"`
	Name      string `json:"name" bson:"name"`
	Breed     string `json:"breed,omitempty" bson:"breed,omitempty"`
}

// CowWithRecords bundles a cow with its latest milk and health entries.
type CowWithRecords struct {
	Cow           Cow            `json:"cow"`
	MilkRecords   []MilkRecord   `json:"milk_records"`
	HealthRecords []HealthRecord `json:"health_records"`
}
