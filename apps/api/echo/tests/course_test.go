package tests

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/payment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
	emailsvc "github.com/Mabu007/czane-beauty-academy/services/email"
)

func Test_courseApi_catalog(t *testing.T) {
	app := setup(t)
	published := createCourse(t, "Gel Nails", course.StatusPublished)
	draft := createCourse(t, "Lash Lift", course.StatusDraft)
	admin := createUser(t, "Boss", "boss@test.za", "", user.RoleAdmin)
	student := createUser(t, "Kid", "kid@test.za", "", user.RoleStudent)

	notAvailable := marshalObj(t, httpErr{Error: course.ErrNotAvailable.Error()})
	tests := []httpTest{
		{name: "published only", path: "/v1/courses", wantCode: http.StatusOK, wantData: marshalObj(t, []course.Course{published})},
		{name: "published course", path: "/v1/courses/" + published.ID, wantCode: http.StatusOK, wantData: marshalObj(t, published)},
		{name: "unknown course", path: "/v1/courses/lol", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "Course not found."})},
		{name: "draft: anonymous", path: "/v1/courses/" + draft.ID, wantCode: http.StatusForbidden, wantData: notAvailable},
		{name: "draft: student", path: "/v1/courses/" + draft.ID, token: getToken(t, student), wantCode: http.StatusForbidden, wantData: notAvailable},
		{name: "draft: admin", path: "/v1/courses/" + draft.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marshalObj(t, draft)},
	}
	runTests(t, app, tests)

	t.Run("draft: demoted admin", func(t *testing.T) {
		token := getToken(t, admin)
		admin.Role = user.RoleStudent
		_, err := usrRepo.UpdateUser(context.Background(), admin)
		require.NoError(t, err)

		rec := do(app, http.MethodGet, "/v1/courses/"+draft.ID, token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: notAvailable}, rec)
	})
}

func Test_courseApi_learning(t *testing.T) {
	app := setup(t)
	c := createCourse(t, "Gel Nails", course.StatusPublished)
	student := createUser(t, "Ayanda", "ayanda@test.za", "", user.RoleStudent)
	token := getToken(t, student)
	base := "/v1/courses/" + c.ID

	progress := func(t *testing.T) enrollment.CourseView {
		rec := do(app, http.MethodGet, base+"/progress", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var view enrollment.CourseView
		unmarshal(t, rec, &view)
		return view
	}

	// not enrolled yet
	view := progress(t)
	assert.Nil(t, view.Enrollment)
	assert.Equal(t, enrollment.Progress{TotalLessons: 2}, view.Progress)
	rec := do(app, http.MethodPost, base+"/lessons/l1/complete", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("payment success enrolls once", func(t *testing.T) {
		var first enrollment.Enrollment
		for i := 0; i < 2; i++ {
			rec := do(app, http.MethodPost, "/v1/payments/success", token, marshalObj(t, map[string]string{"courseId": c.ID}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var enr enrollment.Enrollment
			unmarshal(t, rec, &enr)
			if i == 0 {
				first = enr
			}
			assert.Equal(t, first.ID, enr.ID)
			assert.Equal(t, enrollment.PaymentPaid, enr.PaymentStatus)
			assert.Equal(t, enrollment.MethodPayFast, enr.PaymentMethod)
			assert.Equal(t, "499.99", enr.AmountPaid.StringFixed(2))
		}
	})

	t.Run("certificate not yet earned", func(t *testing.T) {
		rec := do(app, http.MethodGet, base+"/certificate", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: certificate.ErrNotEligible.Error()}),
		}, rec)
	})

	t.Run("complete lesson", func(t *testing.T) {
		for i := 0; i < 2; i++ { // idempotent
			rec := do(app, http.MethodPost, base+"/lessons/l1/complete", token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var view enrollment.CourseView
			unmarshal(t, rec, &view)
			assert.Equal(t, enrollment.Progress{TotalLessons: 2, CompletedCount: 1, Percent: 50}, view.Progress)
		}
		rec := do(app, http.MethodPost, base+"/lessons/lol/complete", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// the quiz cannot be ticked off without passing it
		rec = do(app, http.MethodPost, base+"/lessons/q1/complete", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: enrollment.ErrPassToComplete.Error()}),
		}, rec)
		view := progress(t)
		assert.Equal(t, 50, view.Progress.Percent)
		assert.False(t, view.Enrollment.HasCompleted("q1"))

		rec = do(app, http.MethodGet, base+"/certificate", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("quiz", func(t *testing.T) {
		rec := do(app, http.MethodPost, base+"/lessons/l1/quiz", token, []byte(`{"answers":{"0":1}}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "not an assessment")

		rec = do(app, http.MethodPost, base+"/lessons/q1/quiz", token, []byte(`{"answers":{"0":0}}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var failed enrollment.QuizOutcome
		unmarshal(t, rec, &failed)
		assert.False(t, failed.Passed)
		assert.False(t, failed.Recorded)
		assert.Equal(t, 50, progress(t).Progress.Percent)

		rec = do(app, http.MethodPost, base+"/lessons/q1/quiz", token, []byte(`{"answers":{"0":1}}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var passed enrollment.QuizOutcome
		unmarshal(t, rec, &passed)
		assert.True(t, passed.Passed)
		assert.True(t, passed.Recorded)
		assert.Equal(t, 1, passed.Correct)
		assert.Equal(t, 1, passed.Total)
		require.NotNil(t, passed.Progress)
		assert.True(t, passed.Progress.IsComplete)

		view := progress(t)
		require.NotNil(t, view.Enrollment)
		assert.Equal(t, 100, view.Progress.Percent)
		assert.True(t, view.Enrollment.QuizResults["q1"].Passed)
	})

	t.Run("certificate", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		for i := 0; i < 2; i++ {
			rec := do(app, http.MethodGet, base+"/certificate", token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, certificate.ContentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="Certificate - Gel Nails.png"`, rec.Header().Get("Content-Disposition"))

			cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, certificate.Width, cfg.Width)
			assert.Equal(t, certificate.Height, cfg.Height)
		}

		enr, err := enrollRepo.GetEnrollment(context.Background(), enrollment.EnrollmentID(student.ID, c.ID))
		require.NoError(t, err)
		assert.True(t, enr.CertificateIssued)
		// emailed on the first download only
		assert.Len(t, emailsvc.Outbox(), 1)
	})

	t.Run("dashboard", func(t *testing.T) {
		other := createCourse(t, "Brow Lamination", course.StatusPublished)
		enroll(t, student, other)

		rec := do(app, http.MethodGet, "/v1/dashboard", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var views []enrollment.CourseView
		unmarshal(t, rec, &views)
		require.Len(t, views, 2)
		byTitle := map[string]enrollment.Progress{}
		for _, v := range views {
			byTitle[v.Course.Title] = v.Progress
		}
		assert.True(t, byTitle["Gel Nails"].IsComplete)
		assert.Equal(t, 0, byTitle["Brow Lamination"].Percent)
	})
}

func Test_courseApi_checkout(t *testing.T) {
	app := setup(t)
	c := createCourse(t, "Gel Nails", course.StatusPublished)
	draft := createCourse(t, "Lash Lift", course.StatusDraft)
	student := createUser(t, "Ayanda", "ayanda@test.za", "", user.RoleStudent)
	token := getToken(t, student)

	rec := do(app, http.MethodPost, "/v1/courses/"+c.ID+"/checkout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(app, http.MethodPost, "/v1/courses/"+draft.ID+"/checkout", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(app, http.MethodPost, "/v1/courses/"+c.ID+"/checkout", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var form payment.CheckoutForm
	unmarshal(t, rec, &form)
	assert.Equal(t, payment.SandboxURL, form.Action)

	vals := form.Values()
	assert.Equal(t, conf.Payment.MerchantID, vals.Get("merchant_id"))
	assert.Equal(t, "499.99", vals.Get("amount"))
	assert.Equal(t, "Gel Nails", vals.Get("item_name"))
	assert.Equal(t, "ayanda@test.za", vals.Get("email_address"))
	assert.Equal(t, conf.FrontendBaseURL+"/#/payment/success?courseId="+c.ID, vals.Get("return_url"))
	assert.Equal(t, conf.FrontendBaseURL+"/#/course/"+c.ID, vals.Get("cancel_url"))
}
