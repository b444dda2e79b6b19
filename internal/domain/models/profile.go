package models

import "time"

// Profile is the user profile row kept next to the auth account.
type Profile struct {
	ID          string     `json:"id" bson:"_id"`
	FirstName   string     `json:"first_name" bson:"first_name"`
	LastName    string     `json:"last_name" bson:"last_name"`
	DisplayName string     `json:"display_name" bson:"display_name"`
	Email       string     `json:"email" bson:"email"`
	Role        string     `json:"role" bson:"role"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// ProfileUpdate carries the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}
