package certificate

import (
	"bytes"
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

const (
	DateFormat  = "2 January 2006"
	ContentType = "image/png"
)

var (
	// errors
	ErrNotEligible = core.NewPermissionError("Complete every lesson of this course to get your certificate.")

	nowFunc = time.Now
)

type (
	// Enrollments is the part of the enrollment service certificates depend on.
	Enrollments interface {
		View(ctx context.Context, v enrollment.Viewer, courseID string) (enrollment.CourseView, error)
		MarkCertificateIssued(ctx context.Context, enr *enrollment.Enrollment) (bool, error)
	}

	File struct {
		Name        string
		ContentType string
		Data        []byte
	}

	Service struct {
		enrollments Enrollments
		templates   TemplateRepository
		renderer    *Renderer
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

func NewService(
	enrollments Enrollments,
	templates TemplateRepository,
	renderer *Renderer,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		enrollments: enrollments,
		templates:   templates,
		renderer:    renderer,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

// Template returns the saved template, or the default one.
func (svc *Service) Template(ctx context.Context) (Template, error) {
	tpl, err := svc.templates.GetCertificateTemplate(ctx)
	if err != nil {
		if err == ErrTemplateNotFound {
			return DefaultTemplate(), nil
		}
		return Template{}, errors.Wrap(err, "loading certificate template")
	}
	return tpl, nil
}

func (svc *Service) SaveTemplate(ctx context.Context, tpl Template, validate *validator.Validate) (Template, error) {
	if err := tpl.Validate(validate); err != nil {
		return Template{}, err
	}
	if err := svc.templates.SaveCertificateTemplate(ctx, tpl); err != nil {
		return Template{}, errors.Wrap(err, "saving certificate template")
	}
	return tpl, nil
}

// Download renders the certificate of usr for a completed course.
// The first download marks the certificate as issued and emails a copy.
func (svc *Service) Download(ctx context.Context, usr user.User, courseID string) (File, error) {
	var (
		view enrollment.CourseView
		tpl  Template
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view, err = svc.enrollments.View(gctx, enrollment.Viewer{UserID: usr.ID, IsAdmin: usr.IsAdmin()}, courseID)
		return err
	})
	g.Go(func() (err error) {
		tpl, err = svc.Template(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return File{}, err
	}
	if view.Enrollment == nil || !view.Progress.IsComplete {
		return File{}, ErrNotEligible
	}

	data, err := svc.renderer.Render(ctx, Data{
		StudentName: usr.Name(),
		CourseTitle: view.Course.Title,
		Date:        nowFunc().Format(DateFormat),
	}, tpl)
	if err != nil {
		return File{}, err
	}
	file := File{
		Name:        "Certificate - " + view.Course.Title + ".png",
		ContentType: ContentType,
		Data:        data,
	}

	issued, err := svc.enrollments.MarkCertificateIssued(ctx, view.Enrollment)
	if err != nil {
		// the student still gets the certificate, the flag is set on the next download
		svc.logger.Error("certificate.Service.Download: marking issued", err, map[string]interface{}{"enrollmentId": view.Enrollment.ID})
		return file, nil
	}
	if issued {
		svc.sendCertificate(usr, view.Course.Title, file)
	}
	return file, nil
}

func (svc *Service) sendCertificate(usr user.User, courseTitle string, file File) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Your certificate: " + courseTitle,
		TemplateName: "certificate_issued",
		TemplateData: struct{ Name, CourseTitle string }{Name: usr.Name(), CourseTitle: courseTitle},
	}
	if err := msg.Attach(bytes.NewReader(file.Data), file.Name, file.ContentType); err != nil {
		svc.logger.Error("certificate.Service.sendCertificate: attaching certificate", err)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

// Preview renders tpl with sample data.
func (svc *Service) Preview(ctx context.Context, tpl Template, validate *validator.Validate) (File, error) {
	if err := tpl.Validate(validate); err != nil {
		return File{}, err
	}
	data, err := svc.renderer.Render(ctx, Data{
		StudentName: "Jane Doe",
		CourseTitle: "Advanced Lash Extensions",
		Date:        nowFunc().Format(DateFormat),
	}, tpl)
	if err != nil {
		return File{}, err
	}
	return File{Name: "Certificate - Preview.png", ContentType: ContentType, Data: data}, nil
}
