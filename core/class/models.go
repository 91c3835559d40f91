package class

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core"
)

// Class is a concrete offering of a subject that students enroll into.
type Class struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Period    string `json:"period" db:"period"`
	Capacity  int    `json:"capacity" db:"capacity"`
	SubjectID int    `json:"subject_id" db:"subject_id"`
	CourseID  int    `json:"course_id" db:"course_id"`
}

type NewClass struct {
	Name      string `json:"name" validate:"required"`
	Period    string `json:"period" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
	SubjectID int    `json:"subject_id" validate:"required,min=1"`
	CourseID  int    `json:"course_id" validate:"required,min=1"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Period = core.CleanString(nc.Period)
	return validate.Struct(nc)
}

// InviteStatus is derived from an invite's use count and expiry.
type InviteStatus string

const (
	InviteActive    InviteStatus = "active"
	InviteExhausted InviteStatus = "exhausted" // use_count reached max_uses
	InviteExpired   InviteStatus = "expired"   // past expires_at
)

// Invite is a redeemable code granting a student enrollment into one class.
// Null MaxUses means unlimited uses; null ExpiresAt means no expiry.
type Invite struct {
	ID        int       `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"` // unique, XXX-XXX
	ClassID   int       `json:"class_id" db:"class_id"`
	ExpiresAt null.Time `json:"expires_at" db:"expires_at"`
	MaxUses   null.Int  `json:"max_uses" db:"max_uses"`
	UseCount  int       `json:"use_count" db:"use_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// Status reports the invite state at `now`. Expiry dominates exhaustion:
// both are terminal, but an expired invite reads as expired regardless of
// remaining uses.
func (inv Invite) Status(now time.Time) InviteStatus {
	if inv.ExpiresAt.Valid && !now.Before(inv.ExpiresAt.Time) {
		return InviteExpired
	}
	if inv.MaxUses.Valid && inv.UseCount >= inv.MaxUses.Int {
		return InviteExhausted
	}
	return InviteActive
}

// NewInvite carries the invite parameters as received at the API edge.
// expires_in_minutes <= 0 means no expiry; max_uses <= 0 means unlimited.
// Both are normalized to null fields, never stored as sentinels.
type NewInvite struct {
	ExpiresInMinutes int `json:"expires_in_minutes"`
	MaxUses          int `json:"max_uses"`
}

func (ni NewInvite) expiresAt(now time.Time) null.Time {
	if ni.ExpiresInMinutes <= 0 {
		return null.Time{}
	}
	return null.TimeFrom(now.Add(time.Duration(ni.ExpiresInMinutes) * time.Minute))
}

func (ni NewInvite) maxUses() null.Int {
	if ni.MaxUses <= 0 {
		return null.Int{}
	}
	return null.IntFrom(ni.MaxUses)
}

// Enrollment is the (class, student) join row. The pair is unique: a student
// enrolls in a given class at most once.
type Enrollment struct {
	ClassID   int       `json:"class_id" db:"class_id"`
	StudentID int       `json:"student_id" db:"student_id"`
	JoinedAt  time.Time `json:"joined_at" db:"joined_at"` // UTC
}

// EnrollmentResult is returned to a student on successful redemption.
type EnrollmentResult struct {
	ClassID    int    `json:"class_id"`
	ClassName  string `json:"class_name"`
	CourseName string `json:"course"`
}

type QueryFilter struct {
	SubjectID int `query:"subject_id"`
	CourseID  int `query:"course_id"`
	StudentID int `query:"student_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.SubjectID == 0 && qf.CourseID == 0 && qf.StudentID == 0
}
