package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/apiprompt/pkg/schema"
)

// ErrInvalid marks a record that fails validation.
var ErrInvalid = errors.New("invalid record")

const (
	SecuritySecure = "secure"
	SecurityOpen   = "open"
	SecurityPublic = "public"
)

// PersonaModeAuto is the only persona mode stored today.
const PersonaModeAuto = "auto"

// Methods lists the HTTP methods an endpoint may declare.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// AuthMechanisms lists the accepted auth mechanisms for secure endpoints.
var AuthMechanisms = []string{"jwt", "bearer", "cookie", "api_key", "basic", "oauth2"}

// Endpoint is one API endpoint contract together with its prompt metadata.
type Endpoint struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"projectId"`
	Title          string       `json:"title"`
	Method         string       `json:"method"`
	Path           string       `json:"path"`
	ModuleName     string       `json:"moduleName,omitempty"`
	BusinessDesc   string       `json:"businessDesc,omitempty"`
	TechNotes      string       `json:"techNotes,omitempty"`
	Security       string       `json:"security"`
	AuthMechanism  string       `json:"authMechanism,omitempty"`
	Roles          Roles        `json:"roles"`
	PersonaKey     string       `json:"personaKey,omitempty"`
	PersonaMode    string       `json:"personaMode,omitempty"`
	RequestSpec    *schema.Node `json:"requestSpec"`
	RequestQuery   *schema.Node `json:"requestQuery,omitempty"`
	RequestHeaders *schema.Node `json:"requestHeaders,omitempty"`
	ResponseSpec   ResponseSpec `json:"responseSpec"`
	PromptPrefs    PromptPrefs  `json:"promptPrefs"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// NewEndpoint returns a record carrying the creation defaults: secure, no
// roles, an empty object body, no responses and the standard preferences.
func NewEndpoint(projectID, title, method, path string) *Endpoint {
	if method == "" {
		method = "GET"
	}
	return &Endpoint{
		ProjectID:    projectID,
		Title:        strings.TrimSpace(title),
		Method:       strings.ToUpper(method),
		Path:         NormalizePath(path),
		Security:     SecuritySecure,
		Roles:        Roles{},
		PersonaMode:  PersonaModeAuto,
		RequestSpec:  schema.DefaultRoot(),
		ResponseSpec: ResponseSpec{},
		PromptPrefs:  DefaultPrefs(),
	}
}

// NormalizePath trims p and makes sure it starts with a slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// IsSecure reports whether the endpoint requires authentication.
func (e *Endpoint) IsSecure() bool {
	return e.Security == SecuritySecure
}

// Validate checks the enumerated fields and the required identity fields.
func (e *Endpoint) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalid)
	}
	if !contains(Methods, e.Method) {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalid, e.Method)
	}
	switch e.Security {
	case "", SecuritySecure, SecurityOpen, SecurityPublic:
	default:
		return fmt.Errorf("%w: unsupported security %q", ErrInvalid, e.Security)
	}
	if e.AuthMechanism != "" && !contains(AuthMechanisms, e.AuthMechanism) {
		return fmt.Errorf("%w: unsupported auth mechanism %q", ErrInvalid, e.AuthMechanism)
	}
	for status := range e.ResponseSpec.ByStatus {
		if !ValidStatus(status) {
			return fmt.Errorf("%w: bad status code %q", ErrInvalid, status)
		}
	}
	return nil
}

// Normalize fills absent trees with their defaults. Query and header roots
// stay nil when unset.
func (e *Endpoint) Normalize() {
	e.Method = strings.ToUpper(e.Method)
	e.Path = NormalizePath(e.Path)
	e.RequestSpec = schema.Normalize(e.RequestSpec)
	if e.Roles == nil {
		e.Roles = Roles{}
	}
	if e.PersonaMode == "" {
		e.PersonaMode = PersonaModeAuto
	}
}

// Clone returns a deep copy of e.
func (e *Endpoint) Clone() *Endpoint {
	out := *e
	out.Roles = append(Roles(nil), e.Roles...)
	out.RequestSpec = e.RequestSpec.Clone()
	out.RequestQuery = e.RequestQuery.Clone()
	out.RequestHeaders = e.RequestHeaders.Clone()
	out.ResponseSpec = e.ResponseSpec.Clone()
	out.PromptPrefs = append(PromptPrefs(nil), e.PromptPrefs...)
	return &out
}

// Project groups endpoints.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Icon          string    `json:"icon"`
	Color         string    `json:"color"`
	EndpointCount int       `json:"endpointCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewProject returns a project with the default icon and color.
func NewProject(name, description string) *Project {
	return &Project{
		Name:        strings.TrimSpace(name),
		Description: description,
		Icon:        "Folder",
		Color:       "blue",
	}
}

// Validate checks that the project has a name.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
