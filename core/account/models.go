package account

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evolvere-edu/evolvere/core"
)

// Request is a pending professional-account request. One exists per
// non-student user and gates teacher/coordinator privileges until an
// admin or coordinator approves it.
type Request struct {
	ID             int       `json:"id" db:"id"`
	ProfessionalID int       `json:"professional_id" db:"professional_id"`
	Institution    string    `json:"institution" db:"institution"`
	AccessCode     string    `json:"access_code" db:"access_code"` // course code
	DiplomaPath    string    `json:"diploma_path" db:"diploma_path"`
	Role           int       `json:"role" db:"role"`
	Approved       bool      `json:"approved" db:"approved"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewRequest contains information needed to submit a professional request.
type NewRequest struct {
	Institution string `json:"institution" validate:"required"`
	AccessCode  string `json:"access_code" validate:"required"`
	DiplomaPath string `json:"diploma_path" validate:"required"`
	Role        int    `json:"role" validate:"required,role"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Institution = core.CleanString(nr.Institution)
	nr.AccessCode = core.CleanString(nr.AccessCode, true /* lower */)
	return validate.Struct(nr)
}
