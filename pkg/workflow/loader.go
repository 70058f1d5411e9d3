package workflow

import (
	"fmt"
	"os"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a workflow: either a full workflow, or a
// template with an optional customization. JSON documents are valid YAML.
type Document struct {
	Workflow      *models.Workflow     `json:"workflow,omitempty"      yaml:"workflow,omitempty"      validate:"required_without=Template"`
	Template      *models.Template     `json:"template,omitempty"      yaml:"template,omitempty"      validate:"required_without=Workflow,excluded_with=Workflow"`
	Customization models.Customization `json:"customization,omitempty" yaml:"customization,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	return Parse(raw)
}

func Parse(raw []byte) (*Document, error) {
	var doc Document

	err := yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, &models.ValidationError{Op: "load workflow", Message: "document is not valid YAML or JSON", Err: err}
	}

	err = validate.Struct(doc)
	if err != nil {
		return nil, &models.ValidationError{Op: "load workflow", Message: "document must hold exactly one of workflow or template", Err: err}
	}

	return &doc, nil
}

// Build returns the document's workflow, instantiating the template if needed.
func (d *Document) Build(builder *Builder) *models.Workflow {
	if d.Workflow != nil {
		workflow := *d.Workflow
		if workflow.Status == "" {
			workflow.Status = models.WorkflowStatusDraft
		}

		return &workflow
	}

	return builder.CreateFromTemplate(d.Template, d.Customization)
}
