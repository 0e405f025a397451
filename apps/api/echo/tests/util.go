package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	echoapi "github.com/Mabu007/czane-beauty-academy/apps/api/echo"
	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/payment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
	emailsvc "github.com/Mabu007/czane-beauty-academy/services/email"
	"github.com/Mabu007/czane-beauty-academy/storage/docstore/memstore"
	"github.com/Mabu007/czane-beauty-academy/storage/repos"
	testutil "github.com/Mabu007/czane-beauty-academy/tests"
)

var (
	conf       *core.Config
	usrRepo    user.Repository
	courseRepo course.Repository
	enrollRepo enrollment.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup starts a server backed by a fresh in-memory store.
func setup(t *testing.T) *echoapi.Server {
	conf = core.NewTestConfig()
	logger := core.NopLogger{}
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	usrRepo = repos.NewUserRepository(store, logger)
	courseRepo = repos.NewCourseRepository(store, logger)
	enrollRepo = repos.NewEnrollmentRepository(store, logger)

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, logger)
	courseSvc := course.NewService(courseRepo, validate)
	enrollSvc := enrollment.NewService(enrollRepo, courseSvc, core.NopMetrics{}, logger)
	certSvc := certificate.NewService(
		enrollSvc,
		repos.NewSettingsRepository(store),
		certificate.NewRenderer(certificate.NewHTTPLoader(conf.Certificate.BackgroundTimeout), logger),
		mailSvc,
		logger,
	)

	// set up server
	return echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			UserSvc:        usrSvc,
			CourseSvc:      courseSvc,
			EnrollmentSvc:  enrollSvc,
			CertificateSvc: certSvc,
			PaymentSvc:     payment.NewService(courseSvc, enrollSvc, conf),
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type gateErr struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves one request and returns the recorder.
func do(app http.Handler, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := user.GenerateToken(user.NewClaims(usr, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func createUser(t *testing.T, name, email, pwd, role string) user.User {
	return testutil.CreateUser(t, usrRepo, name, email, pwd, role, true)
}

// createCourse stores a course with a video lesson "l1" and a one-question quiz "q1" (option 1 is correct).
func createCourse(t *testing.T, title string, status course.Status) course.Course {
	return testutil.CreateCourse(t, courseRepo, title, status, "499.99",
		course.Lesson{ID: "l1", Title: "Prep", Kind: course.KindVideo, Content: "https://video.test/prep"},
		course.Lesson{ID: "q1", Title: "Check", Kind: course.KindQuiz, Questions: []course.QuizQuestion{
			{ID: "x", Kind: course.MultipleChoice, Question: "Which glue?", Options: []string{"A", "B"}, CorrectIndex: 1},
		}},
	)
}

func enroll(t *testing.T, usr user.User, c course.Course) enrollment.Enrollment {
	enr, err := enrollRepo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ID:            enrollment.EnrollmentID(usr.ID, c.ID),
		UserID:        usr.ID,
		CourseID:      c.ID,
		PaymentStatus: enrollment.PaymentPaid,
		AmountPaid:    decimal.RequireFromString("499.99"),
	})
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return enr
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			var rec *httptest.ResponseRecorder
			if tt.body != nil {
				rec = do(app, method, tt.path, tt.token, tt.body)
			} else {
				rec = do(app, method, tt.path, tt.token)
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
