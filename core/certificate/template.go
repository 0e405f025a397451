package certificate

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrTemplateNotFound is returned by repositories when no template was saved yet.
var ErrTemplateNotFound = errors.New("certificate template not found")

const (
	DefaultAcademyName   = "Czane Beauty Academy"
	DefaultTitleColor    = "#D4AF37"
	DefaultTextColor     = "#000000"
	DefaultSignatureText = "Zanele Masondo"
)

// Template is the admin-editable certificate design, stored as settings/certificateTemplate.
type Template struct {
	AcademyName   string `json:"academyName" validate:"required,max=100"`
	BackgroundURL string `json:"backgroundUrl" validate:"omitempty,url"`
	TitleColor    string `json:"titleColor" validate:"required,hexcolor"`
	TextColor     string `json:"textColor" validate:"required,hexcolor"`
	SignatureText string `json:"signatureText" validate:"max=100"`
}

func DefaultTemplate() Template {
	return Template{
		AcademyName:   DefaultAcademyName,
		TitleColor:    DefaultTitleColor,
		TextColor:     DefaultTextColor,
		SignatureText: DefaultSignatureText,
	}
}

func (t *Template) clean() {
	t.AcademyName = strings.TrimSpace(t.AcademyName)
	t.BackgroundURL = strings.TrimSpace(t.BackgroundURL)
	t.TitleColor = strings.TrimSpace(t.TitleColor)
	t.TextColor = strings.TrimSpace(t.TextColor)
	t.SignatureText = strings.TrimSpace(t.SignatureText)
}

func (t *Template) Validate(validate *validator.Validate) error {
	t.clean()
	return validate.Struct(t)
}

type TemplateRepository interface {
	// GetCertificateTemplate returns ErrTemplateNotFound when none was saved.
	GetCertificateTemplate(ctx context.Context) (Template, error)
	SaveCertificateTemplate(ctx context.Context, t Template) error
}
