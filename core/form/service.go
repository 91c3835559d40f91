package form

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound        = errors.New("form not found")
	ErrFormExists      = errors.New("a form with this title already exists for this class")
	ErrAlreadyAnswered = errors.New("form already answered")
	ErrAnswerNotFound  = errors.New("answer not found")
	ErrDeadlinePassed  = errors.New("form deadline has passed")
	ErrNoResults       = errors.New("no results recorded for this student")
)

type Repository interface {
	// CreateForm persists the form with its questions and options in one
	// transaction; a mid-way failure leaves nothing behind.
	CreateForm(ctx context.Context, f Form) (Form, error)
	// GetFormByID returns the form with questions and options in position order.
	GetFormByID(ctx context.Context, id int) (Form, error)
	FormTitleExists(ctx context.Context, title string, subjectID int, classID null.Int) (bool, error)
	// QueryPendingForms returns forms targeted at one of the student's
	// enrolled classes (or at a subject the student reaches through any
	// class, when class_id is null), with a future deadline and no answers
	// from the student yet, ordered by nearest deadline.
	QueryPendingForms(ctx context.Context, studentID int, now time.Time) ([]Form, error)
	// SaveAnswers inserts one row per answer; fails with ErrAlreadyAnswered
	// when the student already answered one of the questions.
	SaveAnswers(ctx context.Context, answers []Answer) error
	QueryUngradedOpenAnswers(ctx context.Context, subjectID int) ([]OpenAnswerItem, error)
	// SaveCorrection stores the comment/points, marks the answer corrected
	// and, when this was the form's last uncorrected open answer, writes the
	// students' results and flips the form to StatusGraded - all in one
	// transaction.
	SaveCorrection(ctx context.Context, c Correction, teacherID int) error

	GetStudentOverallAverage(ctx context.Context, studentID int) (float64, error)
	GetStudentSubjectAverages(ctx context.Context, studentID int) ([]SubjectGrade, error)
	GetStudentBestGrade(ctx context.Context, studentID int) (BestGrade, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Publish validates and persists a new form with its questions and options.
func (svc *Service) Publish(ctx context.Context, createdBy int, nf NewForm) (Form, error) {
	exists, err := svc.repo.FormTitleExists(ctx, nf.Title, nf.SubjectID, nf.classID())
	if err != nil {
		return Form{}, errors.Wrap(err, "checking title uniqueness")
	}
	if exists {
		return Form{}, ErrFormExists
	}

	f := Form{
		Title:       nf.Title,
		Description: nf.Description,
		CreatedBy:   createdBy,
		SubjectID:   nf.SubjectID,
		ClassID:     nf.classID(),
		Deadline:    nf.Deadline.UTC(),
		Status:      StatusPublished,
	}
	for qi, nq := range nf.Questions {
		q := Question{
			Text:     nq.Text,
			Points:   nq.Points,
			Type:     nq.Type,
			Position: qi + 1,
		}
		for oi, no := range nq.Options {
			q.Options = append(q.Options, Option{
				Text:     no.Text,
				Correct:  no.Correct,
				Position: oi + 1,
			})
		}
		f.Questions = append(f.Questions, q)
	}
	return svc.repo.CreateForm(ctx, f)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Form, error) {
	return svc.repo.GetFormByID(ctx, id)
}

// PendingForStudent builds the dashboard overview of the student's pending
// activities: total count plus the 3 most urgent, enriched with remaining
// days and urgency buckets.
func (svc *Service) PendingForStudent(ctx context.Context, studentID int) (PendingOverview, error) {
	now := time.Now().UTC()
	forms, err := svc.repo.QueryPendingForms(ctx, studentID, now)
	if err != nil {
		return PendingOverview{}, err
	}

	overview := PendingOverview{
		PendingCount:       len(forms),
		UpcomingActivities: make([]PendingForm, 0, 3),
	}
	for _, f := range forms {
		if len(overview.UpcomingActivities) == 3 {
			break
		}
		days := DaysRemaining(f.Deadline, now)
		urgency := UrgencyFor(days)
		overview.UpcomingActivities = append(overview.UpcomingActivities, PendingForm{
			ID:            f.ID,
			Title:         f.Title,
			Description:   f.Description,
			DaysRemaining: days,
			UrgencyLabel:  urgency.Label,
			UrgencyColor:  urgency.Color,
		})
	}
	return overview, nil
}

// SaveAnswers records a student's submission. Choice answers are corrected
// immediately; open answers wait for the teacher. Submissions past the
// deadline are rejected.
func (svc *Service) SaveAnswers(ctx context.Context, userID int, na NewAnswers) error {
	f, err := svc.repo.GetFormByID(ctx, na.FormID)
	if err != nil {
		return err
	}
	if !time.Now().UTC().Before(f.Deadline) {
		return ErrDeadlinePassed
	}

	answers := make([]Answer, 0, len(na.Answers))
	for _, a := range na.Answers {
		ans := Answer{
			FormID:     na.FormID,
			QuestionID: a.QuestionID,
			UserID:     userID,
		}
		if a.OptionID > 0 {
			ans.OptionID.SetValid(a.OptionID)
			ans.Corrected = true
		} else {
			ans.OpenAnswer.SetValid(a.OpenAnswer)
		}
		answers = append(answers, ans)
	}
	return svc.repo.SaveAnswers(ctx, answers)
}

func (svc *Service) UngradedOpenAnswers(ctx context.Context, subjectID int) ([]OpenAnswerItem, error) {
	return svc.repo.QueryUngradedOpenAnswers(ctx, subjectID)
}

func (svc *Service) SaveCorrection(ctx context.Context, teacherID int, c Correction) error {
	return svc.repo.SaveCorrection(ctx, c, teacherID)
}

// StudentReport computes the three performance aggregates in parallel.
func (svc *Service) StudentReport(ctx context.Context, studentID int) (Report, error) {
	var report Report

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		avg, err := svc.repo.GetStudentOverallAverage(gctx, studentID)
		if err != nil {
			if errors.Cause(err) == ErrNoResults {
				return nil
			}
			return errors.Wrap(err, "overall average")
		}
		report.OverallAverage = avg
		return nil
	})
	g.Go(func() error {
		grades, err := svc.repo.GetStudentSubjectAverages(gctx, studentID)
		if err != nil {
			return errors.Wrap(err, "subject averages")
		}
		report.Disciplines = grades
		return nil
	})
	g.Go(func() error {
		best, err := svc.repo.GetStudentBestGrade(gctx, studentID)
		if err != nil {
			if errors.Cause(err) == ErrNoResults {
				return nil
			}
			return errors.Wrap(err, "best grade")
		}
		report.BestGrade = best
		return nil
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if report.Disciplines == nil {
		report.Disciplines = []SubjectGrade{}
	}
	return report, nil
}
