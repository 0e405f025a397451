package enrollment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPaid        PaymentStatus = "PAID"
	PaymentManualAdmin PaymentStatus = "MANUAL_ADMIN"

	MethodPayFast = "PAYFAST"
)

// idNamespace scopes enrollment ids derived from (user, course) pairs.
var idNamespace = uuid.MustParse("6b0d2f6e-3c52-4c1e-9d1f-3e0f5e9a7c21")

// EnrollmentID is the deterministic id of the enrollment of userID in courseID.
// Two concurrent enrollments of the same pair collide on this id in the store.
func EnrollmentID(userID, courseID string) string {
	return uuid.NewSHA1(idNamespace, []byte(userID+"/"+courseID)).String()
}

type Enrollment struct {
	ID                string                `json:"id"`
	UserID            string                `json:"userId"`
	CourseID          string                `json:"courseId"`
	EnrolledAt        time.Time             `json:"enrolledAt"`
	CompletedLessons  []string              `json:"completedLessons"`
	QuizResults       map[string]QuizResult `json:"quizResults"`
	CertificateIssued bool                  `json:"certificateIssued"`
	PaymentStatus     PaymentStatus         `json:"paymentStatus"`
	PaymentMethod     string                `json:"paymentMethod,omitempty"`
	AmountPaid        decimal.Decimal       `json:"amountPaid"`
}

// HasCompleted reports whether lessonID is in the completed set.
func (e *Enrollment) HasCompleted(lessonID string) bool {
	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// QuizResult is the record of a passed quiz or exam.
type QuizResult struct {
	LessonID string    `json:"lessonId"`
	Score    int       `json:"score"`
	Total    int       `json:"totalQuestions"`
	TakenAt  time.Time `json:"dateTaken"`
	Passed   bool      `json:"passed"`
}

// NewEnrollment contains information needed to enroll a user in a course.
type NewEnrollment struct {
	UserID        string
	CourseID      string
	PaymentStatus PaymentStatus
	PaymentMethod string
	AmountPaid    decimal.Decimal
}

type QueryFilter struct {
	UserID   string
	CourseID string
}
