package course

// Course is reference data imported from the institutional registry.
// Rows are immutable after the seed import (apps/admin importcourses).
type Course struct {
	ID          int    `json:"id" db:"id"`
	Code        string `json:"code" db:"code"` // public access code, unique
	Name        string `json:"name" db:"name"`
	Institution string `json:"institution" db:"institution"`
	City        string `json:"city" db:"city"`
	State       string `json:"state" db:"state"`
}
