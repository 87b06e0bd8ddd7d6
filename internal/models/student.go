package models

import "time"

// Student is owned by the school. The parent_id column is the single source
// of truth for parental ownership; enrollment records also carry parent info
// for display but are never consulted for authorization.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	NameEn    string    `db:"name_en" json:"name_en,omitempty"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	BirthDate *string   `db:"birth_date" json:"birth_date,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentInfo is the denormalized display subset embedded in responses.
type StudentInfo struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	NameEn string `db:"name_en" json:"name_en,omitempty"`
}
