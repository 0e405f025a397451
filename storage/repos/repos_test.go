package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
	"github.com/Mabu007/czane-beauty-academy/storage/docstore/memstore"
	"github.com/Mabu007/czane-beauty-academy/storage/docstore/sqlstore"
)

var stores = []struct {
	name string
	open func(t *testing.T) core.DocumentStore
}{
	{
		name: "memory",
		open: func(t *testing.T) core.DocumentStore { return memstore.New() },
	},
	{
		name: "sqlite",
		open: func(t *testing.T) core.DocumentStore {
			s, err := sqlstore.OpenSQLite(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	},
}

// forEachStore runs fn against every document store backend.
func forEachStore(t *testing.T, fn func(t *testing.T, store core.DocumentStore)) {
	for _, s := range stores {
		s := s
		t.Run(s.name, func(t *testing.T) { fn(t, s.open(t)) })
	}
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestUserRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.DocumentStore) {
		ctx := context.Background()
		repo := NewUserRepository(store, core.NopLogger{})

		ann := user.User{Email: "ann@czane.test", DisplayName: "Ann", Role: user.RoleStudent, IsActive: true, CreatedAt: t0}
		require.NoError(t, ann.SetPassword("secret-pass"))
		ann, err := repo.CreateUser(ctx, ann)
		require.NoError(t, err)
		assert.NotEmpty(t, ann.ID)

		bob, err := repo.CreateUser(ctx, user.User{
			Email: "bob@czane.test", DisplayName: "bob", Role: user.RoleAdmin, IsActive: true, CreatedAt: t0.Add(time.Hour),
		})
		require.NoError(t, err)

		t.Run("get keeps the password hash", func(t *testing.T) {
			got, err := repo.GetUserByEmail(ctx, "ANN@czane.test")
			require.NoError(t, err)
			assert.Equal(t, ann.ID, got.ID)
			assert.NoError(t, got.CheckPassword("secret-pass"))
		})

		t.Run("missing user", func(t *testing.T) {
			_, err := repo.GetUserByID(ctx, "nope")
			assert.Equal(t, user.ErrNotFound, err)
			assert.Equal(t, user.ErrNotFound, repo.DeleteUser(ctx, "nope"))
		})

		t.Run("email uniqueness", func(t *testing.T) {
			assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "ann@czane.test"))
			assert.NoError(t, repo.CheckEmailUniqueness(ctx, "ann@czane.test", ann))
			assert.NoError(t, repo.CheckEmailUniqueness(ctx, "carol@czane.test"))
		})

		t.Run("query", func(t *testing.T) {
			users, err := repo.QueryUsers(ctx, user.QueryFilter{})
			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, bob.ID, users[0].ID) // newest first

			users, err = repo.QueryUsers(ctx, user.QueryFilter{}, core.DBOrdering{Field: "name", Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, []string{ann.ID, bob.ID}, []string{users[0].ID, users[1].ID})

			users, err = repo.QueryUsers(ctx, user.QueryFilter{Search: "BOB"})
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, bob.ID, users[0].ID)

			users, err = repo.QueryUsers(ctx, user.QueryFilter{Role: user.RoleStudent})
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, ann.ID, users[0].ID)
		})

		t.Run("update without a new password keeps the old one", func(t *testing.T) {
			upd := ann
			upd.DisplayName = "Ann M"
			upd.PasswordHash = nil
			_, err := repo.UpdateUser(ctx, upd)
			require.NoError(t, err)

			got, err := repo.GetUserByID(ctx, ann.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ann M", got.DisplayName)
			assert.NoError(t, got.CheckPassword("secret-pass"))
		})
	})
}

func newCourse(title string, status course.Status, created time.Time) course.Course {
	return course.Course{
		Title:     title,
		Price:     decimal.RequireFromString("1500.00"),
		Level:     course.LevelBeginner,
		Status:    status,
		CreatedAt: created,
		Modules: []course.Module{
			{ID: "m1", Title: "Basics", Lessons: []course.Lesson{
				{ID: "l1", Title: "Intro", Kind: course.KindVideo, Content: "https://videos.test/intro"},
			}},
		},
	}
}

func TestCourseRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.DocumentStore) {
		ctx := context.Background()
		repo := NewCourseRepository(store, core.NopLogger{})

		lashes, err := repo.CreateCourse(ctx, newCourse("Lash Extensions", course.StatusPublished, t0))
		require.NoError(t, err)
		nails, err := repo.CreateCourse(ctx, newCourse("Nail Art", course.StatusDraft, t0.Add(time.Hour)))
		require.NoError(t, err)

		got, err := repo.GetCourseByID(ctx, lashes.ID)
		require.NoError(t, err)
		assert.Equal(t, "Lash Extensions", got.Title)
		assert.True(t, got.Price.Equal(decimal.NewFromInt(1500)))
		assert.Equal(t, 1, got.TotalLessons())

		_, err = repo.GetCourseByID(ctx, "nope")
		assert.Equal(t, course.ErrNotFound, err)

		all, err := repo.QueryCourses(ctx, course.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, nails.ID, all[0].ID)

		published, err := repo.QueryCourses(ctx, course.QueryFilter{Status: course.StatusPublished})
		require.NoError(t, err)
		require.Len(t, published, 1)
		assert.Equal(t, lashes.ID, published[0].ID)

		t.Run("details update leaves the curriculum alone", func(t *testing.T) {
			upd := lashes
			upd.Title = "Classic Lashes"
			upd.Modules = nil
			got, err := repo.UpdateCourse(ctx, upd)
			require.NoError(t, err)
			assert.Equal(t, "Classic Lashes", got.Title)
			assert.Len(t, got.Modules, 1)
		})

		t.Run("curriculum update", func(t *testing.T) {
			modules := append(got.Modules, course.Module{ID: "m2", Title: "Advanced", Lessons: []course.Lesson{}})
			require.NoError(t, repo.UpdateCurriculum(ctx, lashes.ID, modules))

			got, err := repo.GetCourseByID(ctx, lashes.ID)
			require.NoError(t, err)
			assert.Len(t, got.Modules, 2)
			assert.Equal(t, course.ErrNotFound, repo.UpdateCurriculum(ctx, "nope", modules))
		})

		t.Run("malformed courses are skipped when listing", func(t *testing.T) {
			require.NoError(t, store.Set(ctx, core.CollectionCourses, "broken", core.Document{"id": "broken", "title": 42}))

			all, err := repo.QueryCourses(ctx, course.QueryFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 2)

			_, err = repo.GetCourseByID(ctx, "broken")
			assert.ErrorIs(t, err, core.ErrInvalidDocument)
		})

		require.NoError(t, repo.DeleteCourse(ctx, nails.ID))
		assert.Equal(t, course.ErrNotFound, repo.DeleteCourse(ctx, nails.ID))
	})
}

func TestEnrollmentRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.DocumentStore) {
		ctx := context.Background()
		repo := NewEnrollmentRepository(store, core.NopLogger{})

		enr, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{
			UserID:        "u1",
			CourseID:      "c1",
			EnrolledAt:    t0,
			PaymentStatus: enrollment.PaymentPaid,
			PaymentMethod: enrollment.MethodPayFast,
			AmountPaid:    decimal.RequireFromString("1500.00"),
		})
		require.NoError(t, err)
		assert.Equal(t, enrollment.EnrollmentID("u1", "c1"), enr.ID)

		_, err = repo.CreateEnrollment(ctx, enrollment.Enrollment{UserID: "u1", CourseID: "c1", EnrolledAt: t0})
		assert.Equal(t, enrollment.ErrExists, err)

		require.NoError(t, repo.AddCompletedLesson(ctx, enr.ID, "l1"))
		require.NoError(t, repo.AddCompletedLesson(ctx, enr.ID, "l1"))
		require.NoError(t, repo.RecordQuizPass(ctx, enr.ID, enrollment.QuizResult{
			LessonID: "q1", Score: 3, Total: 4, TakenAt: t0, Passed: true,
		}))
		require.NoError(t, repo.SetCertificateIssued(ctx, enr.ID))

		got, err := repo.GetEnrollment(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"l1", "q1"}, got.CompletedLessons)
		require.Contains(t, got.QuizResults, "q1")
		assert.Equal(t, 3, got.QuizResults["q1"].Score)
		assert.True(t, got.CertificateIssued)
		assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(1500)))

		_, err = repo.GetEnrollment(ctx, "nope")
		assert.Equal(t, enrollment.ErrNotFound, err)
		assert.Equal(t, enrollment.ErrNotFound, repo.AddCompletedLesson(ctx, "nope", "l1"))

		t.Run("legacy documents without a deterministic id", func(t *testing.T) {
			require.NoError(t, store.Set(ctx, core.CollectionEnrollments, "legacy-1", core.Document{
				"id": "legacy-1", "userId": "u2", "courseId": "c1", "enrolledAt": t0.Format(time.RFC3339),
			}))

			enrs, err := repo.QueryEnrollments(ctx, enrollment.QueryFilter{CourseID: "c1"})
			require.NoError(t, err)
			assert.Len(t, enrs, 2)

			enrs, err = repo.QueryEnrollments(ctx, enrollment.QueryFilter{UserID: "u2", CourseID: "c1"})
			require.NoError(t, err)
			require.Len(t, enrs, 1)
			assert.Equal(t, "legacy-1", enrs[0].ID)
			assert.Empty(t, enrs[0].CompletedLessons)

			require.NoError(t, repo.RecordQuizPass(ctx, "legacy-1", enrollment.QuizResult{LessonID: "q1", Score: 1, Total: 2, Passed: true}))
			got, err := repo.GetEnrollment(ctx, "legacy-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"q1"}, got.CompletedLessons)
		})

		require.NoError(t, repo.DeleteEnrollment(ctx, enr.ID))
		assert.Equal(t, enrollment.ErrNotFound, repo.DeleteEnrollment(ctx, enr.ID))
	})
}

func TestSettingsRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.DocumentStore) {
		ctx := context.Background()
		repo := NewSettingsRepository(store)

		_, err := repo.GetCertificateTemplate(ctx)
		assert.Equal(t, certificate.ErrTemplateNotFound, err)

		tpl := certificate.DefaultTemplate()
		tpl.AcademyName = "Czane Academy"
		require.NoError(t, repo.SaveCertificateTemplate(ctx, tpl))

		got, err := repo.GetCertificateTemplate(ctx)
		require.NoError(t, err)
		assert.Equal(t, tpl, got)

		tpl.TitleColor = "gold"
		assert.ErrorIs(t, repo.SaveCertificateTemplate(ctx, tpl), core.ErrInvalidDocument)
	})
}
