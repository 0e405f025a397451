package certificate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

type fakeEnrollments struct {
	view   enrollment.CourseView
	err    error
	marked int
}

func (f *fakeEnrollments) View(context.Context, enrollment.Viewer, string) (enrollment.CourseView, error) {
	return f.view, f.err
}

func (f *fakeEnrollments) MarkCertificateIssued(_ context.Context, enr *enrollment.Enrollment) (bool, error) {
	if enr.CertificateIssued {
		return false, nil
	}
	enr.CertificateIssued = true
	f.marked++
	return true, nil
}

type fakeTemplates struct {
	tpl   *Template
	saved int
}

func (f *fakeTemplates) GetCertificateTemplate(context.Context) (Template, error) {
	if f.tpl == nil {
		return Template{}, ErrTemplateNotFound
	}
	return *f.tpl, nil
}

func (f *fakeTemplates) SaveCertificateTemplate(_ context.Context, t Template) error {
	f.tpl = &t
	f.saved++
	return nil
}

type mailbox struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailbox) SendMessages(msgs ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
}

func completedView(issued bool) enrollment.CourseView {
	c := course.Course{ID: "c1", Title: "Gel Nails", Status: course.StatusPublished, Modules: []course.Module{
		{ID: "m1", Lessons: []course.Lesson{{ID: "l1", Title: "Intro", Kind: course.KindText}}},
	}}
	enr := enrollment.Enrollment{ID: "e1", UserID: "u1", CourseID: "c1", CompletedLessons: []string{"l1"}, CertificateIssued: issued}
	return enrollment.CourseView{Course: c, Enrollment: &enr, Progress: enrollment.Compute(c, enr)}
}

func newTestService(enrs *fakeEnrollments, tpls *fakeTemplates) (*Service, *mailbox) {
	mb := new(mailbox)
	svc := NewService(enrs, tpls, NewRenderer(&fakeLoader{}, core.NopLogger{}), mb, core.NopLogger{})
	return svc, mb
}

func TestService_Download(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC) }
	defer func() { nowFunc = time.Now }()

	usr := user.User{ID: "u1", Email: "thandi@test.test", Role: user.RoleStudent}
	ctx := context.Background()

	t.Run("first download issues and emails", func(t *testing.T) {
		enrs := &fakeEnrollments{view: completedView(false)}
		svc, mb := newTestService(enrs, &fakeTemplates{})

		file, err := svc.Download(ctx, usr, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Certificate - Gel Nails.png", file.Name)
		assert.Equal(t, "image/png", file.ContentType)
		decode(t, file.Data)

		assert.Equal(t, 1, enrs.marked)
		require.Len(t, mb.sent, 1)
		msg := mb.sent[0]
		assert.Equal(t, "certificate_issued", msg.TemplateName)
		assert.Equal(t, "Student", msg.To[0].Name, "empty display name")
		require.True(t, msg.HasAttachments())
		assert.Equal(t, file.Name, msg.Attachments[0].Filename)
	})

	t.Run("later downloads do not write", func(t *testing.T) {
		enrs := &fakeEnrollments{view: completedView(true)}
		svc, mb := newTestService(enrs, &fakeTemplates{})

		_, err := svc.Download(ctx, usr, "c1")
		require.NoError(t, err)
		assert.Equal(t, 0, enrs.marked)
		assert.Empty(t, mb.sent)
	})

	t.Run("incomplete course", func(t *testing.T) {
		view := completedView(false)
		view.Enrollment.CompletedLessons = nil
		view.Progress = enrollment.Compute(view.Course, *view.Enrollment)

		svc, _ := newTestService(&fakeEnrollments{view: view}, &fakeTemplates{})
		_, err := svc.Download(ctx, usr, "c1")
		assert.Equal(t, ErrNotEligible, err)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("not enrolled", func(t *testing.T) {
		view := completedView(false)
		view.Enrollment = nil
		svc, _ := newTestService(&fakeEnrollments{view: view}, &fakeTemplates{})
		_, err := svc.Download(ctx, usr, "c1")
		assert.Equal(t, ErrNotEligible, err)
	})

	t.Run("course unavailable", func(t *testing.T) {
		svc, _ := newTestService(&fakeEnrollments{err: course.ErrNotAvailable}, &fakeTemplates{})
		_, err := svc.Download(ctx, usr, "c1")
		assert.Equal(t, course.ErrNotAvailable, err)
	})
}

func TestService_Template(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	ctx := context.Background()

	tpls := new(fakeTemplates)
	svc, _ := newTestService(&fakeEnrollments{}, tpls)

	tpl, err := svc.Template(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate(), tpl)

	tpl.TitleColor = "gold"
	_, err = svc.SaveTemplate(ctx, tpl, validate)
	assert.IsType(t, validator.ValidationErrors{}, err)
	assert.Equal(t, 0, tpls.saved)

	tpl.TitleColor = " #B76E79 "
	tpl.SignatureText = "Director"
	saved, err := svc.SaveTemplate(ctx, tpl, validate)
	require.NoError(t, err)
	assert.Equal(t, "#B76E79", saved.TitleColor)

	got, err := svc.Template(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	file, err := svc.Preview(ctx, got, validate)
	require.NoError(t, err)
	decode(t, file.Data)
}
