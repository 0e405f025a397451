package repos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/certificate"
)

// settings document ids
const settingCertificateTemplate = "certificateTemplate"

type settingsRepository struct {
	store core.DocumentStore
}

var _ certificate.TemplateRepository = (*settingsRepository)(nil)

func NewSettingsRepository(store core.DocumentStore) certificate.TemplateRepository {
	return &settingsRepository{store: store}
}

func (repo *settingsRepository) GetCertificateTemplate(ctx context.Context) (certificate.Template, error) {
	doc, err := repo.store.Get(ctx, core.CollectionSettings, settingCertificateTemplate)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return certificate.Template{}, certificate.ErrTemplateNotFound
		}
		return certificate.Template{}, errors.Wrap(err, "getting certificate template")
	}
	var tpl certificate.Template
	if err = decode(schemaCertificateTemplate, doc, &tpl); err != nil {
		return certificate.Template{}, err
	}
	return tpl, nil
}

func (repo *settingsRepository) SaveCertificateTemplate(ctx context.Context, tpl certificate.Template) error {
	doc, err := encode(schemaCertificateTemplate, tpl)
	if err != nil {
		return err
	}
	if err = repo.store.Set(ctx, core.CollectionSettings, settingCertificateTemplate, doc); err != nil {
		return errors.Wrap(err, "saving certificate template")
	}
	return nil
}
