package repos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
)

type enrollmentRepository struct {
	store  core.DocumentStore
	logger core.Logger
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(store core.DocumentStore, logger core.Logger) enrollment.Repository {
	return &enrollmentRepository{store: store, logger: logger}
}

func notFound(err error, msg string) error {
	if errors.Cause(err) == core.ErrDocumentNotFound {
		return enrollment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	if e.ID == "" {
		e.ID = enrollment.EnrollmentID(e.UserID, e.CourseID)
	}
	if e.CompletedLessons == nil {
		e.CompletedLessons = []string{}
	}
	if e.QuizResults == nil {
		e.QuizResults = map[string]enrollment.QuizResult{}
	}
	doc, err := encode(schemaEnrollment, e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	if _, err = repo.store.Insert(ctx, core.CollectionEnrollments, e.ID, doc); err != nil {
		if errors.Cause(err) == core.ErrDocumentExists {
			return enrollment.Enrollment{}, enrollment.ErrExists
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	doc, err := repo.store.Get(ctx, core.CollectionEnrollments, id)
	if err != nil {
		return enrollment.Enrollment{}, notFound(err, "getting enrollment")
	}
	var e enrollment.Enrollment
	if err = decode(schemaEnrollment, doc, &e); err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	var filters []core.Filter
	if filter.UserID != "" {
		filters = append(filters, core.Where("userId", filter.UserID))
	}
	if filter.CourseID != "" {
		filters = append(filters, core.Where("courseId", filter.CourseID))
	}
	docs, err := repo.store.Query(ctx, core.CollectionEnrollments, filters...)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrs := make([]enrollment.Enrollment, 0, len(docs))
	for _, doc := range docs {
		var e enrollment.Enrollment
		if err = decode(schemaEnrollment, doc, &e); err != nil {
			repo.logger.Warn("skipping malformed enrollment", map[string]interface{}{"id": doc[core.IDField], "error": err.Error()})
			continue
		}
		enrs = append(enrs, e)
	}
	return enrs, nil
}

func (repo *enrollmentRepository) AddCompletedLesson(ctx context.Context, id, lessonID string) error {
	err := repo.store.Update(ctx, core.CollectionEnrollments, id, core.UnionField("completedLessons", lessonID))
	if err != nil {
		return notFound(err, "adding completed lesson")
	}
	return nil
}

func (repo *enrollmentRepository) RecordQuizPass(ctx context.Context, id string, result enrollment.QuizResult) error {
	err := repo.store.Update(ctx, core.CollectionEnrollments, id,
		core.SetField("quizResults."+result.LessonID, result),
		core.UnionField("completedLessons", result.LessonID),
	)
	if err != nil {
		return notFound(err, "recording quiz result")
	}
	return nil
}

func (repo *enrollmentRepository) SetCertificateIssued(ctx context.Context, id string) error {
	err := repo.store.Update(ctx, core.CollectionEnrollments, id, core.SetField("certificateIssued", true))
	if err != nil {
		return notFound(err, "flagging certificate")
	}
	return nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	if err := repo.store.Delete(ctx, core.CollectionEnrollments, id); err != nil {
		return notFound(err, "deleting enrollment")
	}
	return nil
}
