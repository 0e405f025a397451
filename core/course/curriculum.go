package course

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
)

// Curriculum editing. Modules and lessons are addressed by stable ids, never by position,
// so edits stay valid while other edits reorder the tree.

var (
	ErrModuleNotFound = core.NewNotFoundError("Module not found.")
	ErrLessonNotFound = core.NewNotFoundError("Lesson not found.")
)

// NewID returns an identifier for a module, lesson or question.
func NewID() string {
	return uuid.NewString()
}

func (c *Course) moduleIndex(id string) int {
	return slices.IndexFunc(c.Modules, func(m Module) bool { return m.ID == id })
}

func (c *Course) lessonIndex(id string) (int, int) {
	for mi, m := range c.Modules {
		if li := slices.IndexFunc(m.Lessons, func(l Lesson) bool { return l.ID == id }); li >= 0 {
			return mi, li
		}
	}
	return -1, -1
}

// AddModule appends an empty module.
func (c *Course) AddModule(title string) Module {
	m := Module{ID: NewID(), Title: title, Lessons: []Lesson{}}
	c.Modules = append(c.Modules, m)
	return m
}

func (c *Course) RenameModule(id, title string) error {
	mi := c.moduleIndex(id)
	if mi < 0 {
		return ErrModuleNotFound
	}
	c.Modules[mi].Title = title
	return nil
}

// RemoveModule deletes a module and all its lessons.
func (c *Course) RemoveModule(id string) error {
	mi := c.moduleIndex(id)
	if mi < 0 {
		return ErrModuleNotFound
	}
	c.Modules = slices.Delete(c.Modules, mi, mi+1)
	return nil
}

// MoveModule moves a module to position to, clamped to the valid range.
func (c *Course) MoveModule(id string, to int) error {
	mi := c.moduleIndex(id)
	if mi < 0 {
		return ErrModuleNotFound
	}
	m := c.Modules[mi]
	c.Modules = slices.Delete(c.Modules, mi, mi+1)
	c.Modules = slices.Insert(c.Modules, clamp(to, len(c.Modules)), m)
	return nil
}

// AddLesson appends a lesson to a module. Missing lesson and question ids are generated.
func (c *Course) AddLesson(moduleID string, l Lesson) (Lesson, error) {
	mi := c.moduleIndex(moduleID)
	if mi < 0 {
		return Lesson{}, ErrModuleNotFound
	}
	if l.ID == "" {
		l.ID = NewID()
	} else if ami, _ := c.lessonIndex(l.ID); ami >= 0 {
		return Lesson{}, core.NewValidationError(
			errors.Errorf("lesson %q already exists", l.ID),
			core.FieldError{Field: "id", Error: "a lesson with this id already exists"},
		)
	}
	assignQuestionIDs(&l)
	c.Modules[mi].Lessons = append(c.Modules[mi].Lessons, l)
	return l, nil
}

// ReplaceLesson overwrites the lesson holding l.ID, keeping its position.
func (c *Course) ReplaceLesson(l Lesson) error {
	mi, li := c.lessonIndex(l.ID)
	if mi < 0 {
		return ErrLessonNotFound
	}
	assignQuestionIDs(&l)
	c.Modules[mi].Lessons[li] = l
	return nil
}

func (c *Course) RemoveLesson(id string) error {
	mi, li := c.lessonIndex(id)
	if mi < 0 {
		return ErrLessonNotFound
	}
	c.Modules[mi].Lessons = slices.Delete(c.Modules[mi].Lessons, li, li+1)
	return nil
}

// MoveLesson moves a lesson to position to of module toModuleID (its own module when empty).
func (c *Course) MoveLesson(id, toModuleID string, to int) error {
	mi, li := c.lessonIndex(id)
	if mi < 0 {
		return ErrLessonNotFound
	}
	dest := mi
	if toModuleID != "" {
		if dest = c.moduleIndex(toModuleID); dest < 0 {
			return ErrModuleNotFound
		}
	}

	l := c.Modules[mi].Lessons[li]
	c.Modules[mi].Lessons = slices.Delete(c.Modules[mi].Lessons, li, li+1)
	c.Modules[dest].Lessons = slices.Insert(c.Modules[dest].Lessons, clamp(to, len(c.Modules[dest].Lessons)), l)
	return nil
}

// ValidateCurriculum checks ids and quiz question invariants across the whole tree.
func (c *Course) ValidateCurriculum() error {
	var fldErrs []core.FieldError
	report := func(field, msg string) {
		fldErrs = append(fldErrs, core.FieldError{Field: field, Error: msg})
	}

	seen := make(map[string]struct{})
	checkID := func(field, id string) {
		if !core.ValidDocID(id) {
			report(field, fmt.Sprintf("invalid id %q", id))
			return
		}
		if _, dup := seen[id]; dup {
			report(field, fmt.Sprintf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
	}

	for mi, m := range c.Modules {
		mfield := fmt.Sprintf("modules[%d]", mi)
		checkID(mfield+".id", m.ID)
		for li, l := range m.Lessons {
			lfield := fmt.Sprintf("%s.lessons[%d]", mfield, li)
			checkID(lfield+".id", l.ID)
			if l.Title == "" {
				report(lfield+".title", "this field is required")
			}
			switch l.Kind {
			case KindVideo, KindText, KindPDF, KindQuiz, KindExam:
			default:
				report(lfield+".type", fmt.Sprintf("invalid lesson type %q", l.Kind))
			}
			if !l.IsAssessment() && len(l.Questions) > 0 {
				report(lfield+".quizData", "only quiz and exam lessons hold questions")
			}
			for qi, q := range l.Questions {
				if msg := validateQuestion(q); msg != "" {
					report(fmt.Sprintf("%s.quizData[%d]", lfield, qi), msg)
				}
			}
		}
	}

	if len(fldErrs) > 0 {
		return core.NewValidationError(errors.New("invalid curriculum"), fldErrs...)
	}
	return nil
}

func validateQuestion(q QuizQuestion) string {
	if q.Question == "" {
		return "question text is required"
	}
	switch q.Kind {
	case MultipleChoice:
		if len(q.Options) == 0 {
			return "multiple-choice questions need options"
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return "correct answer must index one of the options"
		}
	case ShortAnswer:
		if len(q.Options) > 0 {
			return "short-answer questions have no options"
		}
	default:
		return fmt.Sprintf("invalid question type %q", q.Kind)
	}
	return ""
}

func assignQuestionIDs(l *Lesson) {
	for i := range l.Questions {
		if l.Questions[i].ID == "" {
			l.Questions[i].ID = NewID()
		}
	}
}

// assignIDs fills missing module, lesson and question ids of a whole curriculum.
func assignIDs(modules []Module) {
	for mi := range modules {
		if modules[mi].ID == "" {
			modules[mi].ID = NewID()
		}
		if modules[mi].Lessons == nil {
			modules[mi].Lessons = []Lesson{}
		}
		for li := range modules[mi].Lessons {
			if modules[mi].Lessons[li].ID == "" {
				modules[mi].Lessons[li].ID = NewID()
			}
			assignQuestionIDs(&modules[mi].Lessons[li])
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
