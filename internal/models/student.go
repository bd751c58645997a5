package models

import "time"

// Student is a member of the class roster. Removed students keep their row with
// IsActive=false so that their attendance history stays addressable.
type Student struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ParentPhone string    `db:"parent_phone" json:"parent_phone"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
