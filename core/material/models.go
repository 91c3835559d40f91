package material

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core"
)

// Origin flags
const (
	OriginSubject = 1 // attached to the whole subject
	OriginClass   = 2 // attached to one specific class
)

// Material is a study resource uploaded by a professional.
type Material struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Type      string    `json:"type" db:"type"` // content type of the archive
	Archive   string    `json:"archive" db:"archive"` // storage key
	CreatedBy int       `json:"created_by" db:"created_by"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	ClassID   null.Int  `json:"class_id" db:"class_id"`
	Origin    int       `json:"origin" db:"origin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewMaterial is the upload metadata; the file itself arrives as a multipart
// part. class_id 0 attaches the material subject-wide.
type NewMaterial struct {
	Title     string `json:"title" validate:"required"`
	SubjectID int    `json:"subject_id" validate:"required,min=1"`
	ClassID   int    `json:"class_id" validate:"omitempty,min=1"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

func (nm NewMaterial) classID() null.Int {
	if nm.ClassID <= 0 {
		return null.Int{}
	}
	return null.IntFrom(nm.ClassID)
}

func (nm NewMaterial) origin() int {
	if nm.ClassID <= 0 {
		return OriginSubject
	}
	return OriginClass
}
