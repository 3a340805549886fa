package manifest

import (
	"path"
	"strings"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
	"github.com/GriffinCanCode/nodegraph/internal/shared/utils"
)

// FileName is the descriptor file expected at the root of every component directory
const FileName = "manifest.json"

// Descriptor is the manifest shipped with an extension
type Descriptor struct {
	Name          string   `json:"name"`
	ComponentName string   `json:"componentName"`
	Version       string   `json:"version"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Main          string   `json:"main"`
	Tags          []string `json:"tags,omitempty"`
	MinAppVersion string   `json:"minAppVersion,omitempty"`
	Icon          string   `json:"icon,omitempty"`
}

// Port describes one node input or output
type Port struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NodeDescriptor is the relaxed manifest used by graph nodes
type NodeDescriptor struct {
	Component   string   `json:"component"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Main        string   `json:"main,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Inputs      []Port   `json:"inputs,omitempty"`
	Outputs     []Port   `json:"outputs,omitempty"`
}

// Manifest is the kind-independent view used by the installer and scanner.
// Main may be empty for nodes; it is then inferred from the directory.
type Manifest struct {
	Kind          types.Kind
	ID            string
	Name          string
	Version       string
	Author        string
	Description   string
	Main          string
	Tags          []string
	MinAppVersion string
	Icon          string
	Category      string
}

// Validate checks an extension descriptor. It reports the first missing
// required field in the order name, version, author, main, componentName.
func Validate(d Descriptor) error {
	required := []struct {
		field string
		value string
	}{
		{"name", d.Name},
		{"version", d.Version},
		{"author", d.Author},
		{"main", d.Main},
		{"componentName", d.ComponentName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return types.MissingField(r.field)
		}
	}

	if err := utils.ValidateComponentID(d.ComponentName, "componentName"); err != nil {
		return &types.ManifestError{Reason: err.Error()}
	}
	if err := validateMain(d.Main); err != nil {
		return err
	}
	return validateText(d.Name, d.Version, d.Description, d.Tags)
}

// ValidateNode checks a node descriptor against the relaxed required set.
func ValidateNode(d NodeDescriptor) error {
	required := []struct {
		field string
		value string
	}{
		{"component", d.Component},
		{"name", d.Name},
		{"version", d.Version},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return types.MissingField(r.field)
		}
	}

	if err := utils.ValidateComponentID(d.Component, "component"); err != nil {
		return &types.ManifestError{Reason: err.Error()}
	}
	if d.Main != "" {
		if err := validateMain(d.Main); err != nil {
			return err
		}
	}
	return validateText(d.Name, d.Version, d.Description, d.Tags)
}

func validateMain(main string) error {
	if err := utils.ValidateString(main, "main", 1, utils.MaxPathLength, true); err != nil {
		return &types.ManifestError{Reason: err.Error()}
	}
	clean := path.Clean(strings.ReplaceAll(main, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return &types.ManifestError{Field: "main", Reason: "must be a relative path inside the component"}
	}
	return nil
}

func validateText(name, version, description string, tags []string) error {
	checks := []error{
		utils.ValidateString(name, "name", 1, utils.MaxNameLength, true),
		utils.ValidateString(version, "version", 1, utils.MaxVersionLength, true),
		utils.ValidateString(description, "description", 0, utils.MaxDescriptionLength, false),
		utils.ValidateTags(tags),
	}
	for _, err := range checks {
		if err != nil {
			return &types.ManifestError{Reason: err.Error()}
		}
	}
	return nil
}

// FromDescriptor normalizes an extension descriptor
func FromDescriptor(d Descriptor) *Manifest {
	return &Manifest{
		Kind:          types.KindExtension,
		ID:            d.ComponentName,
		Name:          d.Name,
		Version:       d.Version,
		Author:        d.Author,
		Description:   d.Description,
		Main:          cleanMain(d.Main),
		Tags:          d.Tags,
		MinAppVersion: d.MinAppVersion,
		Icon:          d.Icon,
	}
}

// FromNodeDescriptor normalizes a node descriptor
func FromNodeDescriptor(d NodeDescriptor) *Manifest {
	return &Manifest{
		Kind:        types.KindNode,
		ID:          d.Component,
		Name:        d.Name,
		Version:     d.Version,
		Author:      d.Author,
		Description: d.Description,
		Main:        cleanMain(d.Main),
		Tags:        d.Tags,
		Icon:        d.Icon,
		Category:    d.Category,
	}
}

func cleanMain(main string) string {
	if main == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(main, `\`, "/")), "./")
}
