package enrollment

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/course"
)

// PassThreshold is the minimum fraction of correct answers for a pass.
const PassThreshold = 0.5

var (
	ErrNoQuestions     = core.NewValidationError(errors.New("this lesson has no questions"))
	ErrAttemptState    = errors.New("invalid attempt state")
	ErrQuestionIndex   = core.NewValidationError(errors.New("answer does not match a question"))
	ErrNotAnAssessment = core.NewValidationError(errors.New("this lesson is not a quiz or exam"))
)

// Answer is either a selected option index or free text.
// On the wire it is a JSON number or a JSON string.
type Answer struct {
	Choice *int
	Text   *string
}

func Choice(i int) Answer      { return Answer{Choice: &i} }
func Text(s string) Answer     { return Answer{Text: &s} }
func (a Answer) IsEmpty() bool { return a.Choice == nil && a.Text == nil }

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.Choice != nil:
		return json.Marshal(*a.Choice)
	case a.Text != nil:
		return json.Marshal(*a.Text)
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	*a = Answer{}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
	case string:
		a.Text = &t
	case float64:
		if t != float64(int(t)) {
			return errors.Errorf("answer %v is not an option index", t)
		}
		i := int(t)
		a.Choice = &i
	default:
		return errors.New("answer must be an option index or text")
	}
	return nil
}

// Answers are keyed by question index.
type Answers map[int]Answer

type Result struct {
	Correct int     `json:"score"`
	Total   int     `json:"totalQuestions"`
	Ratio   float64 `json:"ratio"`
	Passed  bool    `json:"passed"`
}

// Grade scores answers against questions.
//
// A multiple-choice question is correct when the answer selects the correct option.
// A short-answer question is correct whenever the answer holds any non-blank text;
// the reference answer is only shown back to the student.
func Grade(questions []course.QuizQuestion, answers Answers) (Result, error) {
	if len(questions) == 0 {
		return Result{}, ErrNoQuestions
	}

	g := Result{Total: len(questions)}
	for i, q := range questions {
		a := answers[i]
		switch q.Kind {
		case course.ShortAnswer:
			if a.Text != nil && strings.TrimSpace(*a.Text) != "" {
				g.Correct++
			}
		default:
			if a.Choice != nil && *a.Choice == q.CorrectIndex {
				g.Correct++
			}
		}
	}
	g.Ratio = float64(g.Correct) / float64(g.Total)
	g.Passed = g.Ratio >= PassThreshold
	return g, nil
}

type AttemptState int

const (
	NotStarted AttemptState = iota
	Answering
	Submitted
)

func (s AttemptState) String() string {
	switch s {
	case Answering:
		return "answering"
	case Submitted:
		return "submitted"
	}
	return "not_started"
}

// Attempt tracks one sitting of a quiz. It is not safe for concurrent use.
type Attempt struct {
	questions []course.QuizQuestion
	state     AttemptState
	answers   Answers
	result    Result
}

func NewAttempt(questions []course.QuizQuestion) *Attempt {
	return &Attempt{questions: questions}
}

func (a *Attempt) State() AttemptState { return a.state }

// Result returns the outcome of the last submission.
func (a *Attempt) Result() (Result, bool) {
	return a.result, a.state == Submitted
}

// Start begins answering with no answers recorded.
func (a *Attempt) Start() error {
	if a.state != NotStarted {
		return errors.Wrapf(ErrAttemptState, "cannot start while %s", a.state)
	}
	a.reset()
	return nil
}

// Retake starts over after a submission. Retakes are unlimited.
func (a *Attempt) Retake() error {
	if a.state != Submitted {
		return errors.Wrapf(ErrAttemptState, "cannot retake while %s", a.state)
	}
	a.reset()
	return nil
}

func (a *Attempt) reset() {
	a.state = Answering
	a.answers = make(Answers, len(a.questions))
	a.result = Result{}
}

// Answer records the answer to question i, replacing any earlier one.
func (a *Attempt) Answer(i int, ans Answer) error {
	if a.state != Answering {
		return errors.Wrapf(ErrAttemptState, "cannot answer while %s", a.state)
	}
	if i < 0 || i >= len(a.questions) {
		return ErrQuestionIndex
	}
	a.answers[i] = ans
	return nil
}

func (a *Attempt) Submit() (Result, error) {
	if a.state != Answering {
		return Result{}, errors.Wrapf(ErrAttemptState, "cannot submit while %s", a.state)
	}
	g, err := Grade(a.questions, a.answers)
	if err != nil {
		return Result{}, err
	}
	a.result = g
	a.state = Submitted
	return g, nil
}
