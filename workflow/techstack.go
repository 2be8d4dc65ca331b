package workflow

import (
	"fmt"
	"strings"
)

// NotSpecified is rendered for optional tech-stack fields left blank.
const NotSpecified = "Not specified"

// DefaultDeploymentEnvs is the deployment-environment allow-list used when
// configuration does not override it.
var DefaultDeploymentEnvs = []string{"aws"}

// TechStackConfig records the chosen implementation technologies that drive
// plan generation.
type TechStackConfig struct {
	// PrimaryLanguage is the main implementation language. Required.
	PrimaryLanguage string `json:"primary_language,omitempty"`

	// WebFramework is the web framework, if any. Optional.
	WebFramework string `json:"web_framework,omitempty"`

	// DatabaseSystem is the primary datastore. Required.
	DatabaseSystem string `json:"database_system,omitempty"`

	// DeploymentEnv is the target deployment environment. Required and
	// restricted to the configured allow-list.
	DeploymentEnv string `json:"deployment_env,omitempty"`
}

// IsZero returns true when no field has been set.
func (c TechStackConfig) IsZero() bool {
	return c == TechStackConfig{}
}

// Validate checks the queue-guard requirements: the three required fields
// are present and the deployment environment is allowed. Draft saves skip
// this; submission never does.
func (c TechStackConfig) Validate(allowedEnvs []string) error {
	if strings.TrimSpace(c.PrimaryLanguage) == "" {
		return &ValidationError{Field: "primary_language", Message: "primary language is required"}
	}
	if strings.TrimSpace(c.DatabaseSystem) == "" {
		return &ValidationError{Field: "database_system", Message: "database system is required"}
	}
	if strings.TrimSpace(c.DeploymentEnv) == "" {
		return &ValidationError{Field: "deployment_env", Message: "deployment environment is required"}
	}

	if len(allowedEnvs) == 0 {
		allowedEnvs = DefaultDeploymentEnvs
	}
	for _, env := range allowedEnvs {
		if strings.EqualFold(c.DeploymentEnv, env) {
			return nil
		}
	}
	return &ValidationError{
		Field: "deployment_env",
		Message: fmt.Sprintf("deployment environment %q is not supported; allowed: %s",
			c.DeploymentEnv, strings.Join(allowedEnvs, ", ")),
	}
}

// Render returns the fixed four-line description used in generation
// context and fallback plans. Blank optional fields render as
// "Not specified" so the template shape is stable.
func (c TechStackConfig) Render() string {
	field := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return NotSpecified
		}
		return v
	}

	var b strings.Builder
	b.WriteString("Primary language: " + field(c.PrimaryLanguage) + "\n")
	b.WriteString("Web framework: " + field(c.WebFramework) + "\n")
	b.WriteString("Database system: " + field(c.DatabaseSystem) + "\n")
	b.WriteString("Deployment environment: " + field(c.DeploymentEnv))
	return b.String()
}
