package payment

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

const (
	SandboxURL = "https://sandbox.payfast.co.za/eng/process"
	LiveURL    = "https://www.payfast.co.za/eng/process"
)

type (
	Courses interface {
		GetForViewer(ctx context.Context, id string, isAdmin bool) (course.Course, error)
	}

	Enroller interface {
		Enroll(ctx context.Context, ne enrollment.NewEnrollment) (enrollment.Enrollment, bool, error)
	}

	// Field is one hidden input of the checkout form. Order matters to the gateway.
	Field struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	// CheckoutForm is posted by the browser to the gateway.
	CheckoutForm struct {
		Action string  `json:"action"`
		Fields []Field `json:"fields"`
	}

	Service struct {
		courses     Courses
		enrollments Enroller
		conf        *core.Config
	}
)

func NewService(courses Courses, enrollments Enroller, conf *core.Config) *Service {
	return &Service{courses: courses, enrollments: enrollments, conf: conf}
}

// Values returns the fields as url.Values, e.g. to build a redirect URL.
func (f CheckoutForm) Values() url.Values {
	vals := make(url.Values, len(f.Fields))
	for _, fld := range f.Fields {
		vals.Set(fld.Name, fld.Value)
	}
	return vals
}

func (svc *Service) actionURL() string {
	if svc.conf.Payment.Sandbox {
		return SandboxURL
	}
	return LiveURL
}

// Checkout builds the gateway form for buying a published course.
func (svc *Service) Checkout(ctx context.Context, usr user.User, courseID string) (CheckoutForm, error) {
	c, err := svc.courses.GetForViewer(ctx, courseID, false)
	if err != nil {
		return CheckoutForm{}, err
	}

	base := svc.conf.FrontendBaseURL
	return CheckoutForm{
		Action: svc.actionURL(),
		Fields: []Field{
			{"merchant_id", svc.conf.Payment.MerchantID},
			{"merchant_key", svc.conf.Payment.MerchantKey},
			{"amount", c.Price.StringFixed(2)},
			{"item_name", c.Title},
			{"return_url", base + "/#/payment/success?courseId=" + url.QueryEscape(c.ID)},
			{"cancel_url", base + "/#/course/" + url.PathEscape(c.ID)},
			{"email_address", usr.Email},
			{"name_first", usr.DisplayName},
		},
	}, nil
}

// Complete enrolls usr after the gateway redirected back with a successful payment.
// Repeated calls return the existing enrollment.
func (svc *Service) Complete(ctx context.Context, usr user.User, courseID string) (enrollment.Enrollment, error) {
	c, err := svc.courses.GetForViewer(ctx, courseID, false)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	enr, _, err := svc.enrollments.Enroll(ctx, enrollment.NewEnrollment{
		UserID:        usr.ID,
		CourseID:      c.ID,
		PaymentStatus: enrollment.PaymentPaid,
		PaymentMethod: enrollment.MethodPayFast,
		AmountPaid:    c.Price,
	})
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "enrolling after payment")
	}
	return enr, nil
}
