package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Mabu007/czane-beauty-academy/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("Course not found.")
	ErrNotAvailable = core.NewPermissionError("This course is currently not available to the public.")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		// UpdateCourse replaces the course details, leaving the curriculum untouched.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// UpdateCurriculum replaces the modules of a course in one partial update.
		UpdateCurriculum(ctx context.Context, id string, modules []Module) error
		DeleteCourse(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// GetForViewer returns a course as visible to the caller: drafts are only visible to administrators.
func (svc *Service) GetForViewer(ctx context.Context, id string, isAdmin bool) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsPublished() && !isAdmin {
		return Course{}, ErrNotAvailable
	}
	return c, nil
}

// QueryPublished lists the public catalog.
func (svc *Service) QueryPublished(ctx context.Context, filter QueryFilter) ([]Course, error) {
	filter.Status = StatusPublished
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}
	if err := validatePrice(nc.Price); err != nil {
		return Course{}, err
	}

	assignIDs(nc.Modules)
	c := Course{
		Title:       nc.Title,
		Description: nc.Description,
		Price:       nc.Price,
		Level:       nc.Level,
		Status:      nc.Status,
		Image:       nc.Image,
		Category:    nc.Category,
		CreatedAt:   time.Now().UTC(),
		Modules:     nc.Modules,
	}
	if c.Modules == nil {
		c.Modules = []Module{}
	}
	if err := c.ValidateCurriculum(); err != nil {
		return Course{}, err
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	if err := svc.validate.Struct(uc); err != nil {
		return Course{}, err
	}
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}

	if title := core.CleanString(uc.Title); title != "" {
		c.Title = title
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Price != nil {
		if err = validatePrice(*uc.Price); err != nil {
			return Course{}, err
		}
		c.Price = *uc.Price
	}
	if uc.Level != "" {
		c.Level = uc.Level
	}
	if uc.Status != "" {
		c.Status = uc.Status
	}
	if uc.Image != nil {
		c.Image = core.CleanString(*uc.Image)
	}
	if uc.Category != nil {
		c.Category = core.CleanString(*uc.Category)
	}
	return svc.repo.UpdateCourse(ctx, c)
}

// SetStatus publishes or unpublishes a course.
func (svc *Service) SetStatus(ctx context.Context, id string, status Status) (Course, error) {
	if status != StatusDraft && status != StatusPublished {
		return Course{}, core.NewValidationError(
			errors.Errorf("invalid status %q", status),
			core.FieldError{Field: "status", Error: "status must be one of [Draft Published]"},
		)
	}
	return svc.Update(ctx, id, UpdateCourse{Status: status})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Curriculum

// editCurriculum loads a course, applies edit and stores the resulting modules.
// Concurrent edits of the same course are last-write-wins.
func (svc *Service) editCurriculum(ctx context.Context, courseID string, edit func(c *Course) error) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err = edit(&c); err != nil {
		return Course{}, err
	}
	if err = c.ValidateCurriculum(); err != nil {
		return Course{}, err
	}
	if err = svc.repo.UpdateCurriculum(ctx, c.ID, c.Modules); err != nil {
		return Course{}, errors.Wrap(err, "updating curriculum")
	}
	return c, nil
}

func (svc *Service) AddModule(ctx context.Context, courseID string, mi ModuleInput) (Module, error) {
	if err := svc.validate.Struct(mi); err != nil {
		return Module{}, err
	}
	var m Module
	_, err := svc.editCurriculum(ctx, courseID, func(c *Course) error {
		m = c.AddModule(core.CleanString(mi.Title))
		return nil
	})
	return m, err
}

func (svc *Service) RenameModule(ctx context.Context, courseID, moduleID string, mi ModuleInput) (Course, error) {
	if err := svc.validate.Struct(mi); err != nil {
		return Course{}, err
	}
	return svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.RenameModule(moduleID, core.CleanString(mi.Title))
	})
}

func (svc *Service) RemoveModule(ctx context.Context, courseID, moduleID string) (Course, error) {
	return svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.RemoveModule(moduleID)
	})
}

func (svc *Service) MoveModule(ctx context.Context, courseID, moduleID string, pos Position) (Course, error) {
	return svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.MoveModule(moduleID, pos.Index)
	})
}

func (svc *Service) AddLesson(ctx context.Context, courseID, moduleID string, li LessonInput) (Lesson, error) {
	if err := svc.validate.Struct(li); err != nil {
		return Lesson{}, err
	}
	var l Lesson
	_, err := svc.editCurriculum(ctx, courseID, func(c *Course) error {
		var err error
		l, err = c.AddLesson(moduleID, li.lesson(""))
		return err
	})
	return l, err
}

func (svc *Service) UpdateLesson(ctx context.Context, courseID, lessonID string, li LessonInput) (Lesson, error) {
	if err := svc.validate.Struct(li); err != nil {
		return Lesson{}, err
	}
	l := li.lesson(lessonID)
	c, err := svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.ReplaceLesson(l)
	})
	if err != nil {
		return Lesson{}, err
	}
	l, _ = c.FindLesson(lessonID)
	return l, nil
}

func (svc *Service) RemoveLesson(ctx context.Context, courseID, lessonID string) (Course, error) {
	return svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.RemoveLesson(lessonID)
	})
}

func (svc *Service) MoveLesson(ctx context.Context, courseID, lessonID string, pos Position) (Course, error) {
	return svc.editCurriculum(ctx, courseID, func(c *Course) error {
		return c.MoveLesson(lessonID, pos.ModuleID, pos.Index)
	})
}

type (
	ModuleInput struct {
		Title string `json:"title" validate:"required,max=200"`
	}

	// Position targets an index, optionally in another module.
	Position struct {
		ModuleID string `json:"moduleId"`
		Index    int    `json:"index"`
	}
)

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return core.NewValidationError(
			errors.New("negative price"),
			core.FieldError{Field: "price", Error: "price cannot be negative"},
		)
	}
	return nil
}
