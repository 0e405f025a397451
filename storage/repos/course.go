package repos

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/course"
)

type courseRepository struct {
	store  core.DocumentStore
	logger core.Logger
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(store core.DocumentStore, logger core.Logger) course.Repository {
	return &courseRepository{store: store, logger: logger}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if c.ID == "" {
		c.ID = course.NewID()
	}
	doc, err := encode(schemaCourse, c)
	if err != nil {
		return course.Course{}, err
	}
	if _, err = repo.store.Insert(ctx, core.CollectionCourses, c.ID, doc); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	doc, err := repo.store.Get(ctx, core.CollectionCourses, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	var c course.Course
	if err = decode(schemaCourse, doc, &c); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

// QueryCourses lists matching courses, newest first. Malformed documents are skipped.
func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	var filters []core.Filter
	if filter.Status != "" {
		filters = append(filters, core.Where("status", string(filter.Status)))
	}
	if filter.Level != "" {
		filters = append(filters, core.Where("level", string(filter.Level)))
	}
	if filter.Category != "" {
		filters = append(filters, core.Where("category", filter.Category))
	}
	docs, err := repo.store.Query(ctx, core.CollectionCourses, filters...)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(docs))
	for _, doc := range docs {
		var c course.Course
		if err = decode(schemaCourse, doc, &c); err != nil {
			repo.logger.Warn("skipping malformed course", map[string]interface{}{"id": doc[core.IDField], "error": err.Error()})
			continue
		}
		courses = append(courses, c)
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.store.Update(ctx, core.CollectionCourses, c.ID,
		core.SetField("title", c.Title),
		core.SetField("description", c.Description),
		core.SetField("price", c.Price),
		core.SetField("level", c.Level),
		core.SetField("status", c.Status),
		core.SetField("image", c.Image),
		core.SetField("category", c.Category),
	)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return repo.GetCourseByID(ctx, c.ID)
}

func (repo *courseRepository) UpdateCurriculum(ctx context.Context, id string, modules []course.Module) error {
	if modules == nil {
		modules = []course.Module{}
	}
	if err := repo.store.Update(ctx, core.CollectionCourses, id, core.SetField("modules", modules)); err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "updating curriculum")
	}
	return nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if err := repo.store.Delete(ctx, core.CollectionCourses, id); err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "deleting course")
	}
	return nil
}
