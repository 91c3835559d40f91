package form

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core"
)

// Form statuses
const (
	StatusPublished = 1
	StatusGraded    = 2
)

// Question types
const (
	QuestionChoice = "choice" // auto-graded against Option.Correct
	QuestionOpen   = "open"   // requires teacher correction
)

// Form is a quiz composed of ordered questions. A null ClassID targets every
// class of the subject; otherwise only the given class.
type Form struct {
	ID          int       `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedBy   int       `json:"created_by" db:"created_by"`
	SubjectID   int       `json:"subject_id" db:"subject_id"`
	ClassID     null.Int  `json:"class_id" db:"class_id"`
	Deadline    time.Time `json:"deadline" db:"deadline"` // UTC
	Status      int       `json:"status" db:"status"`

	Questions []Question `json:"questions,omitempty" db:"-"`
}

type Question struct {
	ID       int     `json:"id" db:"id"`
	FormID   int     `json:"form_id" db:"form_id"`
	Text     string  `json:"text" db:"text"`
	Points   float64 `json:"points" db:"points"`
	Type     string  `json:"type" db:"type"`
	Position int     `json:"position" db:"position"`

	Options []Option `json:"options,omitempty" db:"-"`
}

type Option struct {
	ID         int    `json:"id" db:"id"`
	QuestionID int    `json:"question_id" db:"question_id"`
	Text       string `json:"text" db:"text"`
	Correct    bool   `json:"correct" db:"correct"`
	Position   int    `json:"position" db:"position"`
}

// NewForm contains everything needed to publish a form. class_id 0 publishes
// subject-wide (stored as null).
type NewForm struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	SubjectID   int           `json:"subject_id" validate:"required,min=1"`
	ClassID     int           `json:"class_id" validate:"omitempty,min=1"`
	Deadline    time.Time     `json:"deadline" validate:"required"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Text    string      `json:"text" validate:"required"`
	Points  float64     `json:"points" validate:"required,gt=0"`
	Type    string      `json:"type" validate:"required,oneof=choice open"`
	Options []NewOption `json:"options" validate:"dive"`
}

type NewOption struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	// choice questions need at least 2 options, one of them correct;
	// open questions carry none
	for _, q := range nf.Questions {
		switch q.Type {
		case QuestionChoice:
			if len(q.Options) < 2 {
				return core.NewValidationError(nil, core.FieldError{
					Field: "options", Error: "choice questions need at least two options",
				})
			}
			var hasCorrect bool
			for _, opt := range q.Options {
				if opt.Correct {
					hasCorrect = true
					break
				}
			}
			if !hasCorrect {
				return core.NewValidationError(nil, core.FieldError{
					Field: "options", Error: "choice questions need a correct option",
				})
			}
		case QuestionOpen:
			if len(q.Options) > 0 {
				return core.NewValidationError(nil, core.FieldError{
					Field: "options", Error: "open questions cannot have options",
				})
			}
		}
	}
	return nil
}

func (nf NewForm) classID() null.Int {
	if nf.ClassID <= 0 {
		return null.Int{}
	}
	return null.IntFrom(nf.ClassID)
}

// Answer is one student response to one question. Choice answers are marked
// corrected on save; open answers wait for a teacher.
type Answer struct {
	ID         int         `json:"id" db:"id"`
	FormID     int         `json:"form_id" db:"form_id"`
	QuestionID int         `json:"question_id" db:"question_id"`
	OptionID   null.Int    `json:"option_id" db:"option_id"`
	OpenAnswer null.String `json:"open_answer" db:"open_answer"`
	UserID     int         `json:"user_id" db:"user_id"`
	Corrected  bool        `json:"corrected" db:"corrected"`
}

type NewAnswers struct {
	FormID  int         `json:"form_id" validate:"required,min=1"`
	Answers []NewAnswer `json:"answers" validate:"required,min=1,dive"`
}

type NewAnswer struct {
	QuestionID int    `json:"question_id" validate:"required,min=1"`
	OptionID   int    `json:"option_id"`
	OpenAnswer string `json:"open_answer"`
}

func (na *NewAnswers) Validate(validate *validator.Validate) error {
	if err := validate.Struct(na); err != nil {
		return err
	}
	for _, a := range na.Answers {
		if (a.OptionID <= 0) == (core.CleanString(a.OpenAnswer) == "") {
			return core.NewValidationError(nil, core.FieldError{
				Field: "answers", Error: "each answer needs exactly one of option_id or open_answer",
			})
		}
	}
	return nil
}

// OpenAnswerItem is an ungraded open answer queued for teacher correction.
type OpenAnswerItem struct {
	AnswerID     int    `json:"answer_id" db:"answer_id"`
	FormID       int    `json:"form_id" db:"form_id"`
	FormTitle    string `json:"form_title" db:"form_title"`
	QuestionID   int    `json:"question_id" db:"question_id"`
	QuestionText string `json:"question_text" db:"question_text"`
	MaxPoints    float64 `json:"max_points" db:"max_points"`
	StudentID    int    `json:"student_id" db:"student_id"`
	StudentName  string `json:"student_name" db:"student_name"`
	OpenAnswer   string `json:"open_answer" db:"open_answer"`
}

// Correction is a teacher's grading of one open answer.
type Correction struct {
	AnswerID int     `json:"answer_id" validate:"required,min=1"`
	Comment  string  `json:"comment" validate:"required"`
	Points   float64 `json:"points" validate:"min=0"`
}

func (c *Correction) Validate(validate *validator.Validate) error {
	c.Comment = core.CleanString(c.Comment)
	return validate.Struct(c)
}

// Result is a student's final grade on a form.
type Result struct {
	ID     int     `json:"id" db:"id"`
	FormID int     `json:"form_id" db:"form_id"`
	UserID int     `json:"user_id" db:"user_id"`
	Points float64 `json:"points" db:"points"`
}

// Urgency buckets for pending activities.
type Urgency struct {
	Label string
	Color string
}

var (
	urgencyOverdue   = Urgency{Label: "Vencido", Color: "red"}
	urgencyUrgent    = Urgency{Label: "Urgente", Color: "red"}
	urgencyImportant = Urgency{Label: "Importante", Color: "amber"}
	urgencyNormal    = Urgency{Label: "Normal", Color: "blue"}
)

// UrgencyFor buckets a pending form by its remaining days.
func UrgencyFor(daysRemaining int) Urgency {
	switch {
	case daysRemaining <= 0:
		return urgencyOverdue
	case daysRemaining <= 5:
		return urgencyUrgent
	case daysRemaining <= 10:
		return urgencyImportant
	default:
		return urgencyNormal
	}
}

// DaysRemaining returns the ceiling of calendar days until the deadline,
// clamped to -1 once the deadline has passed.
func DaysRemaining(deadline, now time.Time) int {
	if !now.Before(deadline) {
		return -1
	}
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

// PendingForm is a form awaiting the student's answers, enriched for display.
type PendingForm struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	DaysRemaining int    `json:"daysRemaining"`
	UrgencyLabel  string `json:"urgencyLabel"`
	UrgencyColor  string `json:"urgencyColor"`
}

// PendingOverview is the dashboard card payload: the raw pending count plus
// the 3 most urgent activities.
type PendingOverview struct {
	PendingCount       int           `json:"pendingCount"`
	UpcomingActivities []PendingForm `json:"upcomingActivities"`
}

// Report aggregates a student's performance.
type Report struct {
	OverallAverage float64        `json:"overallAverage"`
	BestGrade      BestGrade      `json:"bestGrade"`
	Disciplines    []SubjectGrade `json:"disciplines"`
}

type BestGrade struct {
	Name  string  `json:"name" db:"name"`
	Grade float64 `json:"grade" db:"grade"`
}

type SubjectGrade struct {
	Name  string  `json:"name" db:"name"`
	Grade float64 `json:"grade" db:"grade"`
}
