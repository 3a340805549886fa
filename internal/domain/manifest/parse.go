package manifest

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/saintfish/chardet"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

//go:embed schema/*.json
var schemaFS embed.FS

const (
	extensionSchema = "extension.schema.json"
	nodeSchema      = "node.schema.json"
)

var (
	schemas    map[string]*jsonschema.Schema
	schemaOnce sync.Once
	schemaErr  error
	printer    = message.NewPrinter(language.English)
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range []string{extensionSchema, nodeSchema} {
			raw, err := schemaFS.ReadFile("schema/" + name)
			if err != nil {
				schemaErr = fmt.Errorf("failed to read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				schemaErr = fmt.Errorf("failed to unmarshal schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(name, doc); err != nil {
				schemaErr = fmt.Errorf("failed to add schema %s: %w", name, err)
				return
			}
		}

		compiled := make(map[string]*jsonschema.Schema, 2)
		for _, name := range []string{extensionSchema, nodeSchema} {
			s, err := c.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("failed to compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
		schemas = compiled
	})
	return schemas, schemaErr
}

// Parse decodes and validates an extension descriptor.
func Parse(data []byte) (*Descriptor, error) {
	if err := check(data, extensionSchema); err != nil {
		return nil, err
	}

	var d Descriptor
	if err := sonic.Unmarshal(data, &d); err != nil {
		return nil, &types.ManifestError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseNode decodes and validates a node descriptor.
func ParseNode(data []byte) (*NodeDescriptor, error) {
	if err := check(data, nodeSchema); err != nil {
		return nil, err
	}

	var d NodeDescriptor
	if err := sonic.Unmarshal(data, &d); err != nil {
		return nil, &types.ManifestError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := ValidateNode(d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseFor decodes raw descriptor bytes according to kind.
func ParseFor(kind types.Kind, data []byte) (*Manifest, error) {
	if kind == types.KindNode {
		d, err := ParseNode(data)
		if err != nil {
			return nil, err
		}
		return FromNodeDescriptor(*d), nil
	}
	d, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return FromDescriptor(*d), nil
}

// check rejects non UTF-8 input and values of the wrong JSON type.
func check(data []byte, schemaName string) error {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return &types.ManifestError{Reason: "descriptor is empty"}
	}

	if !utf8.Valid(data) {
		charset := "unknown"
		if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res != nil {
			charset = strings.ToLower(res.Charset)
		}
		return &types.ManifestError{Reason: fmt.Sprintf("descriptor must be UTF-8 encoded (detected %s)", charset)}
	}

	compiled, err := loadSchemas()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &types.ManifestError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if err := compiled[schemaName].Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return schemaIssue(ve)
		}
		return &types.ManifestError{Reason: err.Error()}
	}
	return nil
}

// schemaIssue reports the first leaf of a validation error tree.
func schemaIssue(ve *jsonschema.ValidationError) error {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	reason := "does not match schema"
	if ve.ErrorKind != nil {
		reason = ve.ErrorKind.LocalizedString(printer)
	}
	field := strings.Join(ve.InstanceLocation, ".")
	return &types.ManifestError{Field: field, Reason: reason}
}
