package subject

import (
	"github.com/go-playground/validator/v10"

	"github.com/evolvere-edu/evolvere/core"
)

// Subject is a discipline taught by a professional within a course.
type Subject struct {
	ID             int    `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	ProfessionalID int    `json:"professional_id" db:"professional_id"`
	CourseID       int    `json:"course_id" db:"course_id"`
}

type NewSubject struct {
	Name           string `json:"name" validate:"required"`
	ProfessionalID int    `json:"professional_id" validate:"required,min=1"`
	CourseID       int    `json:"course_id" validate:"required,min=1"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name           string `json:"name"`
	ProfessionalID int    `json:"professional_id" validate:"omitempty,min=1"`
}

func (us *UpdateSubject) Validate(orig Subject, validate *validator.Validate) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.ProfessionalID == 0 {
		us.ProfessionalID = orig.ProfessionalID
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	CourseID       int `query:"course_id"`
	ProfessionalID int `query:"professional_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.CourseID == 0 && qf.ProfessionalID == 0
}
