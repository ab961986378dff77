// Package sources manages the swagger source-list file: an interactive
// wizard for adding a new entry, plus the append/validate logic it and
// tests share.
package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

// namePattern enforces the source-name invariant: a valid identifier
// prefix, since the name becomes the generated Python package name and
// the MFP_<SERVER>_* variable stem.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName checks a candidate source name against the identifier
// rule.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s (lowercase identifier)", namePattern)
	}
	return nil
}

// Append adds one source to the list file at path, creating the file if
// it does not exist. A duplicate name is a ConfigurationError: sources
// are immutable for a run and the name keys everything downstream.
func Append(path string, src model.SwaggerSource) error {
	if err := ValidateName(src.Name); err != nil {
		return mfperrors.NewConfigurationError(err.Error())
	}
	if src.SwaggerURL == "" {
		return mfperrors.NewConfigurationError("swagger_url is required")
	}

	var list model.SourceList
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &list); err != nil {
			return mfperrors.NewConfigurationError(fmt.Sprintf("parsing source list %q: %v", path, err))
		}
	case os.IsNotExist(err):
		// first source; file is created below
	default:
		return mfperrors.NewConfigurationError(fmt.Sprintf("reading source list %q: %v", path, err))
	}

	for _, existing := range list.Servers {
		if existing.Name == src.Name {
			return mfperrors.NewConfigurationError(fmt.Sprintf("source %q already exists in %s", src.Name, path))
		}
	}
	list.Servers = append(list.Servers, src)

	out, err := yaml.Marshal(&list)
	if err != nil {
		return mfperrors.NewConfigurationError(fmt.Sprintf("marshalling source list: %v", err))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return mfperrors.NewConfigurationError(fmt.Sprintf("creating config directory: %v", err))
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return mfperrors.NewConfigurationError(fmt.Sprintf("writing source list: %v", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return mfperrors.NewConfigurationError(fmt.Sprintf("writing source list: %v", err))
	}
	return nil
}

// RunAddWizard collects one new source interactively and appends it to
// the list file at path.
func RunAddWizard(path string) (*model.SwaggerSource, error) {
	var (
		name       string
		swaggerURL string
		baseURL    string
		authHeader string
		readOnly   bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server name").
				Description("Lowercase identifier; becomes the import name (from <name>.functions import ...).").
				Validate(ValidateName).
				Value(&name),
			huh.NewInput().
				Title("Spec URL or file path").
				Description("http(s) URL or local path of the OpenAPI/Swagger or Postman document.").
				Value(&swaggerURL),
			huh.NewInput().
				Title("API base URL").
				Description("Where generated functions send requests, e.g. https://api.example.com").
				Value(&baseURL),
			huh.NewInput().
				Title("Auth header value (optional)").
				Description("Literal value, ${VAR} reference, or oauth2:<token-url>:<id-env>:<secret-env>.").
				Value(&authHeader),
			huh.NewConfirm().
				Title("Read-only?").
				Description("Drops POST/PUT/PATCH/DELETE endpoints at compile time.").
				Value(&readOnly),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return nil, mfperrors.NewConfigurationError(fmt.Sprintf("wizard cancelled: %v", err))
	}

	src := model.SwaggerSource{
		Name:       name,
		SwaggerURL: swaggerURL,
		BaseURL:    baseURL,
		AuthHeader: authHeader,
		IsReadOnly: readOnly,
	}
	if err := Append(path, src); err != nil {
		return nil, err
	}
	return &src, nil
}
