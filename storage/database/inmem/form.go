package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core/form"
)

type formRepository struct {
	db *DB
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(db *DB) *formRepository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(ctx context.Context, f form.Form) (form.Form, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.forms {
		if existing.Title == f.Title && existing.SubjectID == f.SubjectID && existing.ClassID == f.ClassID {
			return form.Form{}, form.ErrFormExists
		}
	}

	repo.db.formPK++
	f.ID = repo.db.formPK
	for qi := range f.Questions {
		q := &f.Questions[qi]
		repo.db.questionPK++
		q.ID = repo.db.questionPK
		q.FormID = f.ID
		for oi := range q.Options {
			o := &q.Options[oi]
			repo.db.optionPK++
			o.ID = repo.db.optionPK
			o.QuestionID = q.ID
		}
	}

	stored := f
	stored.Questions = append([]form.Question(nil), f.Questions...)
	repo.db.forms[f.ID] = &stored
	return f, nil
}

func (repo *formRepository) GetFormByID(ctx context.Context, id int) (form.Form, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	f, ok := repo.db.forms[id]
	if !ok {
		return form.Form{}, form.ErrNotFound
	}

	cp := *f
	cp.Questions = append([]form.Question(nil), f.Questions...)
	sort.Slice(cp.Questions, func(i, j int) bool { return cp.Questions[i].Position < cp.Questions[j].Position })
	for qi := range cp.Questions {
		q := &cp.Questions[qi]
		q.Options = append([]form.Option(nil), q.Options...)
		sort.Slice(q.Options, func(i, j int) bool { return q.Options[i].Position < q.Options[j].Position })
	}
	return cp, nil
}

func (repo *formRepository) FormTitleExists(ctx context.Context, title string, subjectID int, classID null.Int) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, f := range repo.db.forms {
		if f.Title == title && f.SubjectID == subjectID && f.ClassID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *formRepository) QueryPendingForms(ctx context.Context, studentID int, now time.Time) ([]form.Form, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classIDs := make(map[int]bool)
	subjectIDs := make(map[int]bool)
	for key := range repo.db.enrollments {
		if key.studentID == studentID {
			classIDs[key.classID] = true
			if cls, ok := repo.db.classes[key.classID]; ok {
				subjectIDs[cls.SubjectID] = true
			}
		}
	}

	answered := make(map[int]bool)
	for _, a := range repo.db.answers {
		if a.UserID == studentID {
			answered[a.FormID] = true
		}
	}

	forms := make([]form.Form, 0)
	for _, f := range repo.db.forms {
		if !f.Deadline.After(now) || answered[f.ID] {
			continue
		}
		if f.ClassID.Valid {
			if !classIDs[f.ClassID.Int] {
				continue
			}
		} else if !subjectIDs[f.SubjectID] {
			continue
		}
		cp := *f
		cp.Questions = nil
		forms = append(forms, cp)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].Deadline.Before(forms[j].Deadline) })
	return forms, nil
}

func (repo *formRepository) SaveAnswers(ctx context.Context, answers []form.Answer) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, a := range answers {
		for _, existing := range repo.db.answers {
			if existing.FormID == a.FormID && existing.QuestionID == a.QuestionID && existing.UserID == a.UserID {
				return form.ErrAlreadyAnswered
			}
		}
	}

	for _, a := range answers {
		repo.db.answerPK++
		a.ID = repo.db.answerPK
		stored := a
		repo.db.answers[a.ID] = &stored
	}
	return nil
}

func (repo *formRepository) findQuestion(id int) (form.Question, bool) {
	for _, f := range repo.db.forms {
		for _, q := range f.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return form.Question{}, false
}

func (repo *formRepository) QueryUngradedOpenAnswers(ctx context.Context, subjectID int) ([]form.OpenAnswerItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]form.OpenAnswerItem, 0)
	for _, a := range repo.db.answers {
		if a.Corrected {
			continue
		}
		f, ok := repo.db.forms[a.FormID]
		if !ok || f.SubjectID != subjectID {
			continue
		}
		q, ok := repo.findQuestion(a.QuestionID)
		if !ok || q.Type != form.QuestionOpen {
			continue
		}

		item := form.OpenAnswerItem{
			AnswerID:     a.ID,
			FormID:       f.ID,
			FormTitle:    f.Title,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			MaxPoints:    q.Points,
			StudentID:    a.UserID,
			OpenAnswer:   a.OpenAnswer.String,
		}
		if usr, ok := repo.db.users[a.UserID]; ok {
			item.StudentName = usr.Name
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AnswerID < items[j].AnswerID })
	return items, nil
}

func (repo *formRepository) SaveCorrection(ctx context.Context, c form.Correction, teacherID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	answer, ok := repo.db.answers[c.AnswerID]
	if !ok {
		return form.ErrAnswerNotFound
	}

	stored := c
	repo.db.corrections[c.AnswerID] = &stored
	answer.Corrected = true

	formID := answer.FormID
	for _, a := range repo.db.answers {
		if a.FormID == formID && !a.Corrected {
			return nil // still open answers to grade
		}
	}

	repo.writeResults(formID)
	if f, ok := repo.db.forms[formID]; ok {
		f.Status = form.StatusGraded
	}
	return nil
}

// writeResults totals each student's points for the form. Choice answers
// earn the question's points when the selected option is correct; open
// answers earn the teacher's points. Caller holds the write lock.
func (repo *formRepository) writeResults(formID int) {
	totals := make(map[int]float64)
	for _, a := range repo.db.answers {
		if a.FormID != formID {
			continue
		}
		if _, seen := totals[a.UserID]; !seen {
			totals[a.UserID] = 0
		}

		q, ok := repo.findQuestion(a.QuestionID)
		if !ok {
			continue
		}
		if q.Type == form.QuestionChoice {
			for _, o := range q.Options {
				if a.OptionID.Valid && o.ID == a.OptionID.Int && o.Correct {
					totals[a.UserID] += q.Points
				}
			}
		} else if corr, ok := repo.db.corrections[a.ID]; ok {
			totals[a.UserID] += corr.Points
		}
	}

	for userID, points := range totals {
		repo.db.results[resultKey{formID, userID}] = &form.Result{
			FormID: formID,
			UserID: userID,
			Points: points,
		}
	}
}

func (repo *formRepository) GetStudentOverallAverage(ctx context.Context, studentID int) (float64, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var sum float64
	var n int
	for key, r := range repo.db.results {
		if key.userID == studentID {
			sum += r.Points
			n++
		}
	}
	if n == 0 {
		return 0, form.ErrNoResults
	}
	return sum / float64(n), nil
}

func (repo *formRepository) GetStudentSubjectAverages(ctx context.Context, studentID int) ([]form.SubjectGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for key, r := range repo.db.results {
		if key.userID != studentID {
			continue
		}
		f, ok := repo.db.forms[key.formID]
		if !ok {
			continue
		}
		s, ok := repo.db.subjects[f.SubjectID]
		if !ok {
			continue
		}
		sums[s.Name] += r.Points
		counts[s.Name]++
	}

	grades := make([]form.SubjectGrade, 0, len(sums))
	for name, sum := range sums {
		grades = append(grades, form.SubjectGrade{Name: name, Grade: sum / float64(counts[name])})
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].Name < grades[j].Name })
	return grades, nil
}

func (repo *formRepository) GetStudentBestGrade(ctx context.Context, studentID int) (form.BestGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var best form.BestGrade
	var found bool
	for key, r := range repo.db.results {
		if key.userID != studentID {
			continue
		}
		if !found || r.Points > best.Grade {
			f, ok := repo.db.forms[key.formID]
			if !ok {
				continue
			}
			s, ok := repo.db.subjects[f.SubjectID]
			if !ok {
				continue
			}
			best = form.BestGrade{Name: s.Name, Grade: r.Points}
			found = true
		}
	}
	if !found {
		return form.BestGrade{}, form.ErrNoResults
	}
	return best, nil
}
