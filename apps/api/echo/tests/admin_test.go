package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/Mabu007/czane-beauty-academy/apps/api/echo"
	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

func Test_adminApi_courses(t *testing.T) {
	app := setup(t)
	token := getToken(t, createUser(t, "Boss", "boss@test.za", "", user.RoleAdmin))

	tests := []httpTest{
		{
			name: "missing title", method: http.MethodPost, path: "/v1/admin/courses", token: token,
			body: []byte(`{"level":"Beginner","price":"10"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "negative price", method: http.MethodPost, path: "/v1/admin/courses", token: token,
			body:     []byte(`{"title":"Nails","level":"Beginner","price":"-1"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"price": "price cannot be negative"}),
		},
	}
	runTests(t, app, tests)

	// create -> draft by default
	rec := do(app, http.MethodPost, "/v1/admin/courses", token, []byte(`{"title":" Nail Art ","level":"Beginner","price":"350"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	unmarshal(t, rec, &c)
	assert.Equal(t, "Nail Art", c.Title)
	assert.Equal(t, course.StatusDraft, c.Status)
	base := "/v1/admin/courses/" + c.ID

	// curriculum
	rec = do(app, http.MethodPost, base+"/modules", token, marshalObj(t, course.ModuleInput{Title: "Basics"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m course.Module
	unmarshal(t, rec, &m)
	assert.NotEmpty(t, m.ID)

	for _, title := range []string{"Tools", "Hygiene"} {
		rec = do(app, http.MethodPost, base+"/modules/"+m.ID+"/lessons", token,
			marshalObj(t, course.LessonInput{Title: title, Kind: course.KindText, Content: "..."}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = do(app, http.MethodGet, base, token)
	unmarshal(t, rec, &c)
	require.Len(t, c.Modules, 1)
	require.Len(t, c.Modules[0].Lessons, 2)
	hygiene := c.Modules[0].Lessons[1]

	rec = do(app, http.MethodPut, base+"/lessons/"+hygiene.ID+"/position", token, marshalObj(t, course.Position{Index: 0}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &c)
	assert.Equal(t, "Hygiene", c.Modules[0].Lessons[0].Title)

	rec = do(app, http.MethodDelete, base+"/lessons/"+hygiene.ID, token)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &c)
	assert.Len(t, c.Modules[0].Lessons, 1)

	rec = do(app, http.MethodPut, base+"/modules/lol", token, marshalObj(t, course.ModuleInput{Title: "X"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// publish
	rec = do(app, http.MethodPut, base+"/status", token, marshalObj(t, echoapi.StatusRequest{Status: "Archived"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(app, http.MethodPut, base+"/status", token, marshalObj(t, echoapi.StatusRequest{Status: course.StatusPublished}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(app, http.MethodGet, "/v1/courses/"+c.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(app, http.MethodDelete, base, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(app, http.MethodGet, base, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_adminApi_students(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Boss", "boss@test.za", "", user.RoleAdmin)
	token := getToken(t, admin)
	c := createCourse(t, "Gel Nails", course.StatusDraft)

	// manual account
	rec := do(app, http.MethodPost, "/v1/admin/students", token, marshalObj(t, user.NewUser{
		DisplayName: "Walk In", Email: "walkin@test.za", Password: strongPwd, PasswordConfirm: strongPwd,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var student user.User
	unmarshal(t, rec, &student)
	assert.True(t, student.IsManual)
	assert.Equal(t, user.RoleStudent, student.Role)

	rec = do(app, http.MethodGet, "/v1/admin/students?role=student", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var students []user.User
	unmarshal(t, rec, &students)
	require.Len(t, students, 1)
	assert.Equal(t, student.ID, students[0].ID)

	t.Run("manual enrollment", func(t *testing.T) {
		path := "/v1/admin/students/" + student.ID + "/enrollments"
		body := marshalObj(t, map[string]string{"courseId": c.ID})

		rec := do(app, http.MethodPost, path, token, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var enr enrollment.Enrollment
		unmarshal(t, rec, &enr)
		assert.Equal(t, enrollment.PaymentManualAdmin, enr.PaymentStatus)
		assert.Equal(t, "499.99", enr.AmountPaid.StringFixed(2))

		rec = do(app, http.MethodPost, path, token, body)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "Student already enrolled in this course."}),
		}, rec)

		rec = do(app, http.MethodPost, path, token, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		// drafts still show up for the admin
		rec = do(app, http.MethodGet, "/v1/admin/students/"+student.ID, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var detail echoapi.StudentDetail
		unmarshal(t, rec, &detail)
		require.Len(t, detail.Courses, 1)
		assert.Equal(t, c.ID, detail.Courses[0].Course.ID)
	})

	t.Run("self protection", func(t *testing.T) {
		rec := do(app, http.MethodPut, "/v1/admin/students/"+admin.ID, token, marshalObj(t, user.UpdateUser{Role: user.RoleStudent}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(app, http.MethodDelete, "/v1/admin/students/"+admin.ID, token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ordering", func(t *testing.T) {
		other := createUser(t, "Zed", "alpha@test.za", "", user.RoleStudent)
		tests := []struct {
			name     string
			ordering string
			wantIDs  []string
		}{
			{"email ascending", "email", []string{other.ID, student.ID}},
			{"email descending", "-email", []string{student.ID, other.ID}},
			{"camelCase alias", "displayName", []string{student.ID, other.ID}},
			{"several fields", "-name,createdAt", []string{other.ID, student.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(app, http.MethodGet, "/v1/admin/students?role=student&ordering="+tt.ordering, token)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var got []user.User
				unmarshal(t, rec, &got)
				ids := make([]string, 0, len(got))
				for _, usr := range got {
					ids = append(ids, usr.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}

		runTests(t, app, []httpTest{
			{
				name:     "unknown field",
				path:     "/v1/admin/students?ordering=password",
				token:    token,
				wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, httpErr{Error: `ordering: cannot order by "password"`}),
			},
			{
				name:     "empty field",
				path:     "/v1/admin/students?ordering=email,-",
				token:    token,
				wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, httpErr{Error: `ordering: cannot order by ""`}),
			},
		})
		require.NoError(t, usrRepo.DeleteUser(context.Background(), other.ID))
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(app, http.MethodDelete, "/v1/admin/students/"+student.ID, token)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(app, http.MethodGet, "/v1/admin/students/"+student.ID, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		_, err := enrollRepo.GetEnrollment(context.Background(), enrollment.EnrollmentID(student.ID, c.ID))
		assert.Error(t, err)
	})
}

func Test_adminApi_certificateTemplate(t *testing.T) {
	app := setup(t)
	token := getToken(t, createUser(t, "Boss", "boss@test.za", "", user.RoleAdmin))

	rec := do(app, http.MethodGet, "/v1/admin/certificate-template", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tpl certificate.Template
	unmarshal(t, rec, &tpl)
	assert.Equal(t, certificate.DefaultTemplate(), tpl)

	tpl.TitleColor = "gold"
	rec = do(app, http.MethodPut, "/v1/admin/certificate-template", token, marshalObj(t, tpl))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tpl.TitleColor = "#B76E79"
	tpl.AcademyName = "Czane Beauty Academy (Durban)"
	rec = do(app, http.MethodPut, "/v1/admin/certificate-template", token, marshalObj(t, tpl))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved certificate.Template
	rec = do(app, http.MethodGet, "/v1/admin/certificate-template", token)
	unmarshal(t, rec, &saved)
	assert.Equal(t, tpl, saved)

	rec = do(app, http.MethodPost, "/v1/admin/certificate-template/preview", token, marshalObj(t, saved))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, certificate.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Preview.png")
}
