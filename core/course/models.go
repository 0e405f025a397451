package course

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func init() {
	// prices are stored as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	Level        string
	Status       string
	LessonKind   string
	QuestionKind string
)

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"

	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"

	KindVideo LessonKind = "video"
	KindText  LessonKind = "text"
	KindPDF   LessonKind = "pdf"
	KindQuiz  LessonKind = "quiz"
	KindExam  LessonKind = "exam"

	MultipleChoice QuestionKind = "multiple-choice"
	ShortAnswer    QuestionKind = "short-answer"
)

// QuizQuestion is a multiple-choice question graded against CorrectIndex,
// or a short-answer question carrying a free-text ReferenceAnswer.
type QuizQuestion struct {
	ID              string
	Kind            QuestionKind
	Question        string
	Options         []string
	CorrectIndex    int
	ReferenceAnswer string
}

// quizQuestionJSON is the stored shape: correctAnswer is a number or a string depending on the kind.
type quizQuestionJSON struct {
	ID            string          `json:"id"`
	Type          QuestionKind    `json:"type"`
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

func (q QuizQuestion) MarshalJSON() ([]byte, error) {
	out := quizQuestionJSON{ID: q.ID, Type: q.Kind, Question: q.Question, Options: q.Options}
	if out.Options == nil {
		out.Options = []string{}
	}

	var err error
	if q.Kind == ShortAnswer {
		out.CorrectAnswer, err = json.Marshal(q.ReferenceAnswer)
	} else {
		out.CorrectAnswer, err = json.Marshal(q.CorrectIndex)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (q *QuizQuestion) UnmarshalJSON(data []byte) error {
	var in quizQuestionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*q = QuizQuestion{ID: in.ID, Kind: in.Type, Question: in.Question, Options: in.Options}

	if len(in.CorrectAnswer) == 0 || string(in.CorrectAnswer) == "null" {
		return nil
	}
	if in.Type == ShortAnswer {
		if err := json.Unmarshal(in.CorrectAnswer, &q.ReferenceAnswer); err != nil {
			return errors.Wrapf(err, "question %q: short-answer correctAnswer must be text", in.ID)
		}
		return nil
	}
	if err := json.Unmarshal(in.CorrectAnswer, &q.CorrectIndex); err != nil {
		return errors.Wrapf(err, "question %q: multiple-choice correctAnswer must be an integer", in.ID)
	}
	return nil
}

type Lesson struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Kind      LessonKind     `json:"type"`
	Content   string         `json:"content"` // URL or raw text, depending on Kind
	Duration  string         `json:"duration,omitempty"`
	Questions []QuizQuestion `json:"quizData,omitempty"`
}

// IsAssessment reports whether the lesson is completed by passing a quiz.
func (l Lesson) IsAssessment() bool {
	return l.Kind == KindQuiz || l.Kind == KindExam
}

type Module struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

type Course struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Level       Level           `json:"level"`
	Status      Status          `json:"status"`
	Image       string          `json:"image"`
	Category    string          `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Modules     []Module        `json:"modules"`
}

func (c *Course) IsPublished() bool {
	return c.Status == StatusPublished
}

// TotalLessons counts the lessons across all modules.
func (c *Course) TotalLessons() int {
	var n int
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// LessonIDs returns the set of lesson ids belonging to the course.
func (c *Course) LessonIDs() map[string]struct{} {
	ids := make(map[string]struct{}, c.TotalLessons())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids[l.ID] = struct{}{}
		}
	}
	return ids
}

func (c *Course) FindLesson(id string) (Lesson, bool) {
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == id {
				return l, true
			}
		}
	}
	return Lesson{}, false
}

// PriceLabel formats the price for display, e.g. "R450.00".
func (c *Course) PriceLabel() string {
	return "R" + c.Price.StringFixed(2)
}

// NewCourse contains information needed to create a Course.
type NewCourse struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Level       Level           `json:"level" validate:"required,oneof=Beginner Intermediate Advanced"`
	Status      Status          `json:"status" validate:"omitempty,oneof=Draft Published"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Category    string          `json:"category" validate:"max=100"`
	Modules     []Module        `json:"modules"`
}

func (nc *NewCourse) clean() {
	nc.Title = strings.TrimSpace(nc.Title)
	nc.Description = strings.TrimSpace(nc.Description)
	nc.Image = strings.TrimSpace(nc.Image)
	nc.Category = strings.TrimSpace(nc.Category)
	if nc.Status == "" {
		nc.Status = StatusDraft
	}
}

// UpdateCourse defines what may be changed on an existing Course. Empty fields are left untouched.
type UpdateCourse struct {
	Title       string           `json:"title" validate:"max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Level       Level            `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Status      Status           `json:"status" validate:"omitempty,oneof=Draft Published"`
	Image       *string          `json:"image" validate:"omitempty"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
}

// LessonInput is the editable part of a Lesson.
type LessonInput struct {
	Title     string         `json:"title" validate:"required,max=200"`
	Kind      LessonKind     `json:"type" validate:"required,oneof=video text pdf quiz exam"`
	Content   string         `json:"content"`
	Duration  string         `json:"duration" validate:"max=50"`
	Questions []QuizQuestion `json:"quizData"`
}

func (li LessonInput) lesson(id string) Lesson {
	l := Lesson{
		ID:       id,
		Title:    strings.TrimSpace(li.Title),
		Kind:     li.Kind,
		Content:  li.Content,
		Duration: strings.TrimSpace(li.Duration),
	}
	if l.IsAssessment() {
		l.Questions = li.Questions
	}
	return l
}

type QueryFilter struct {
	Status   Status `query:"status"`
	Level    Level  `query:"level"`
	Category string `query:"category"`
}
