package enrollment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/course"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("Enrollment not found.")
	ErrExists          = errors.New("enrollment already exists")
	ErrAlreadyEnrolled = core.NewValidationError(errors.New("Student already enrolled in this course."))
	ErrInvalidPayment  = core.NewValidationError(errors.New("invalid payment status"))
	ErrPassToComplete  = core.NewValidationError(errors.New("Pass this quiz to complete it."))
)

// dashboardFetchLimit bounds the concurrent course reads of a dashboard.
const dashboardFetchLimit = 4

type (
	Repository interface {
		// CreateEnrollment fails with ErrExists when the enrollment id is taken.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		// AddCompletedLesson adds lessonID to the completed set (set union).
		AddCompletedLesson(ctx context.Context, id, lessonID string) error
		// RecordQuizPass stores the result under quizResults and marks the lesson completed, in one atomic update.
		RecordQuizPass(ctx context.Context, id string, result QuizResult) error
		SetCertificateIssued(ctx context.Context, id string) error
		DeleteEnrollment(ctx context.Context, id string) error
	}

	// CourseSource reads courses with the visibility rules of the viewer.
	CourseSource interface {
		GetForViewer(ctx context.Context, id string, isAdmin bool) (course.Course, error)
	}

	// Viewer is the user a read is made for.
	Viewer struct {
		UserID  string
		IsAdmin bool
	}

	// CourseView is a course together with the viewer's enrollment, if any.
	CourseView struct {
		Course     course.Course `json:"course"`
		Enrollment *Enrollment   `json:"enrollment"`
		Progress   Progress      `json:"progress"`
	}

	QuizOutcome struct {
		Result
		// Recorded is false when nothing was stored: a failed attempt or no enrollment.
		Recorded bool      `json:"recorded"`
		Progress *Progress `json:"progress,omitempty"`
	}

	Service struct {
		repo    Repository
		courses CourseSource
		metrics core.Metrics
		logger  core.Logger
	}
)

func NewService(repo Repository, courses CourseSource, metrics core.Metrics, logger core.Logger) *Service {
	return &Service{repo: repo, courses: courses, metrics: metrics, logger: logger}
}

// Enroll enrolls a user in a course, at most once per (user, course) pair.
// When the user is already enrolled the existing enrollment is returned with created set to false.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (enr Enrollment, created bool, err error) {
	if ne.PaymentStatus != PaymentPaid && ne.PaymentStatus != PaymentManualAdmin {
		return Enrollment{}, false, ErrInvalidPayment
	}

	// legacy enrollments carry random ids, look them up first
	if enr, err = svc.Find(ctx, ne.UserID, ne.CourseID); err == nil {
		return enr, false, nil
	} else if err != ErrNotFound {
		return Enrollment{}, false, err
	}

	enr = Enrollment{
		ID:               EnrollmentID(ne.UserID, ne.CourseID),
		UserID:           ne.UserID,
		CourseID:         ne.CourseID,
		EnrolledAt:       time.Now().UTC(),
		CompletedLessons: []string{},
		QuizResults:      map[string]QuizResult{},
		PaymentStatus:    ne.PaymentStatus,
		PaymentMethod:    ne.PaymentMethod,
		AmountPaid:       ne.AmountPaid,
	}
	id := enr.ID
	if enr, err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
		if err == ErrExists {
			// lost the race against a concurrent enrollment
			enr, err = svc.repo.GetEnrollment(ctx, id)
			return enr, false, err
		}
		return Enrollment{}, false, errors.Wrap(err, "creating enrollment")
	}

	svc.metrics.Enrolled(string(enr.PaymentStatus))
	return enr, true, nil
}

// Find returns the enrollment of userID in courseID.
func (svc *Service) Find(ctx context.Context, userID, courseID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, EnrollmentID(userID, courseID))
	if err != ErrNotFound {
		return enr, err
	}

	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{UserID: userID, CourseID: courseID})
	if err != nil {
		return Enrollment{}, err
	}
	if len(enrs) == 0 {
		return Enrollment{}, ErrNotFound
	}
	sortByDate(enrs)
	return enrs[0], nil
}

// ForUser lists the enrollments of a user, oldest first.
func (svc *Service) ForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	sortByDate(enrs)
	return enrs, nil
}

// View loads a course and the viewer's enrollment concurrently.
// A missing enrollment is not an error: View.Enrollment is nil.
func (svc *Service) View(ctx context.Context, v Viewer, courseID string) (CourseView, error) {
	var (
		view CourseView
		enr  Enrollment
		has  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := svc.courses.GetForViewer(gctx, courseID, v.IsAdmin)
		view.Course = c
		return err
	})
	g.Go(func() error {
		e, err := svc.Find(gctx, v.UserID, courseID)
		if err == ErrNotFound {
			return nil
		}
		enr, has = e, err == nil
		return err
	})
	if err := g.Wait(); err != nil {
		return CourseView{}, err
	}
	if err := ctx.Err(); err != nil {
		return CourseView{}, err
	}

	if has {
		view.Enrollment = &enr
	}
	view.Progress = Compute(view.Course, enr)
	return view, nil
}

// MarkLessonComplete adds a lesson to the completed set. Marking it again is a no-op.
// Quiz and exam lessons are refused: SubmitQuiz completes them on a pass.
func (svc *Service) MarkLessonComplete(ctx context.Context, v Viewer, courseID, lessonID string) (CourseView, error) {
	view, err := svc.View(ctx, v, courseID)
	if err != nil {
		return CourseView{}, err
	}
	if view.Enrollment == nil {
		return CourseView{}, ErrNotFound
	}
	lesson, ok := view.Course.FindLesson(lessonID)
	if !ok {
		return CourseView{}, course.ErrLessonNotFound
	}
	// quizzes and exams are only completed by passing them
	if lesson.IsAssessment() {
		return CourseView{}, ErrPassToComplete
	}

	enr := view.Enrollment
	if enr.HasCompleted(lessonID) {
		return view, nil
	}
	if err = svc.repo.AddCompletedLesson(ctx, enr.ID, lessonID); err != nil {
		return CourseView{}, errors.Wrap(err, "marking lesson complete")
	}
	enr.CompletedLessons = append(enr.CompletedLessons, lessonID)
	view.Progress = Compute(view.Course, *enr)
	return view, nil
}

// SubmitQuiz grades a quiz or exam attempt.
// A pass is stored together with the lesson completion; a fail leaves the enrollment untouched.
// Without an enrollment the attempt is graded but never stored.
func (svc *Service) SubmitQuiz(ctx context.Context, v Viewer, courseID, lessonID string, answers Answers) (QuizOutcome, error) {
	view, err := svc.View(ctx, v, courseID)
	if err != nil {
		return QuizOutcome{}, err
	}
	lesson, ok := view.Course.FindLesson(lessonID)
	if !ok {
		return QuizOutcome{}, course.ErrLessonNotFound
	}
	if !lesson.IsAssessment() {
		return QuizOutcome{}, ErrNotAnAssessment
	}

	attempt := NewAttempt(lesson.Questions)
	if err = attempt.Start(); err != nil {
		return QuizOutcome{}, err
	}
	for i, ans := range answers {
		if err = attempt.Answer(i, ans); err != nil {
			return QuizOutcome{}, err
		}
	}
	res, err := attempt.Submit()
	if err != nil {
		return QuizOutcome{}, err
	}
	svc.metrics.QuizSubmitted(res.Passed)

	out := QuizOutcome{Result: res}
	enr := view.Enrollment
	if enr == nil {
		return out, nil
	}
	if res.Passed {
		qr := QuizResult{
			LessonID: lessonID,
			Score:    res.Correct,
			Total:    res.Total,
			TakenAt:  time.Now().UTC(),
			Passed:   true,
		}
		if err = svc.repo.RecordQuizPass(ctx, enr.ID, qr); err != nil {
			return QuizOutcome{}, errors.Wrap(err, "recording quiz result")
		}
		if enr.QuizResults == nil {
			enr.QuizResults = map[string]QuizResult{}
		}
		enr.QuizResults[lessonID] = qr
		if !enr.HasCompleted(lessonID) {
			enr.CompletedLessons = append(enr.CompletedLessons, lessonID)
		}
		out.Recorded = true
	}
	p := Compute(view.Course, *enr)
	out.Progress = &p
	return out, nil
}

// Dashboard lists the courses a user is enrolled in with their progress.
// Courses that are gone or no longer visible to the viewer are skipped.
func (svc *Service) Dashboard(ctx context.Context, v Viewer) ([]CourseView, error) {
	enrs, err := svc.ForUser(ctx, v.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]*CourseView, len(enrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFetchLimit)
	for i := range enrs {
		i, enr := i, enrs[i]
		if enr.CourseID == "" {
			continue
		}
		g.Go(func() error {
			c, err := svc.courses.GetForViewer(gctx, enr.CourseID, v.IsAdmin)
			if err != nil {
				if core.IsNotFound(err) || core.IsPermissionDenied(err) {
					svc.logger.Warn(
						"skipping unavailable course on dashboard",
						map[string]interface{}{"courseId": enr.CourseID, "enrollmentId": enr.ID, "error": err.Error()},
					)
					return nil
				}
				return errors.Wrapf(err, "loading course %s", enr.CourseID)
			}
			views[i] = &CourseView{Course: c, Enrollment: &enr, Progress: Compute(c, enr)}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	res := make([]CourseView, 0, len(views))
	for _, cv := range views {
		if cv != nil {
			res = append(res, *cv)
		}
	}
	return res, nil
}

// MarkCertificateIssued sets the certificate flag, only writing when it is not set yet.
// It reports whether this call issued the certificate.
func (svc *Service) MarkCertificateIssued(ctx context.Context, enr *Enrollment) (bool, error) {
	if enr.CertificateIssued {
		return false, nil
	}
	if err := svc.repo.SetCertificateIssued(ctx, enr.ID); err != nil {
		return false, errors.Wrap(err, "marking certificate issued")
	}
	enr.CertificateIssued = true
	svc.metrics.CertificateIssued()
	return true, nil
}

// DeleteForUser removes every enrollment of a user.
func (svc *Service) DeleteForUser(ctx context.Context, userID string) error {
	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{UserID: userID})
	if err != nil {
		return err
	}
	for _, enr := range enrs {
		if err = svc.repo.DeleteEnrollment(ctx, enr.ID); err != nil && err != ErrNotFound {
			return errors.Wrapf(err, "deleting enrollment %s", enr.ID)
		}
	}
	return nil
}

func sortByDate(enrs []Enrollment) {
	sort.SliceStable(enrs, func(i, j int) bool {
		return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt)
	})
}
