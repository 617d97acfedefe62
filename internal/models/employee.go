package models

import "time"

// Employee is a schedulable worker. Nil DefaultPositionID means the employee
// is flexible across positions; nil WorkSiteID means flexible across sites.
type Employee struct {
	ID                string    `db:"id" json:"id"`
	FirstName         string    `db:"first_name" json:"first_name"`
	LastName          string    `db:"last_name" json:"last_name"`
	DefaultPositionID *string   `db:"default_position_id" json:"default_position_id,omitempty"`
	WorkSiteID        *string   `db:"work_site_id" json:"work_site_id,omitempty"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (e Employee) FullName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	return e.FirstName + " " + e.LastName
}

// Position is a staffable role (cashier, cook, ...).
type Position struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorkSite is a physical location employees are attached to.
type WorkSite struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
