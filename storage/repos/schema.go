// Package repos implements the domain repositories on top of a core.DocumentStore.
package repos

import (
	"encoding/json"
	"path"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Mabu007/czane-beauty-academy/core"
	appfs "github.com/Mabu007/czane-beauty-academy/fs"
)

// Schemas
const (
	schemaCourse              = "course"
	schemaEnrollment          = "enrollment"
	schemaUser                = "user"
	schemaCertificateTemplate = "certificate_template"
)

var schemaCache sync.Map // map[string]*jsonschema.Schema

func compiledSchema(name string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	raw, err := appfs.FS.ReadFile(path.Join("schemas", name+".json"))
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema %q", name)
	}
	var parsed interface{}
	if err = json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing schema %q", name)
	}

	c := jsonschema.NewCompiler()
	url := "schema://" + name + ".json"
	if err = c.AddResource(url, parsed); err != nil {
		return nil, errors.Wrap(err, "adding schema resource")
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling schema %q", name)
	}

	schemaCache.Store(name, compiled)
	return compiled, nil
}

// validateDocument checks a stored or about-to-be-stored document against its schema.
func validateDocument(name string, doc core.Document) error {
	sch, err := compiledSchema(name)
	if err != nil {
		return err
	}
	if err = sch.Validate(map[string]interface{}(doc)); err != nil {
		return errors.Wrapf(core.ErrInvalidDocument, "%s: %v", name, err)
	}
	return nil
}

// encode converts v into a document and validates it.
func encode(name string, v interface{}) (core.Document, error) {
	doc, err := core.ToDocument(v)
	if err != nil {
		return nil, err
	}
	if err = validateDocument(name, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// decode validates doc and unmarshals it into dst.
func decode(name string, doc core.Document, dst interface{}) error {
	if err := validateDocument(name, doc); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshalling document")
	}
	if err = json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(core.ErrInvalidDocument, "%s: %v", name, err)
	}
	return nil
}
