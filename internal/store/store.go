package store

import (
	"context"
	"errors"

	"github.com/yourorg/apiprompt/pkg/types"
)

// ErrNotFound is returned when a project or endpoint does not exist.
var ErrNotFound = errors.New("not found")

const (
	SortRecent = "recent"
	SortName   = "name"
)

// ProjectQuery narrows ListProjects.
type ProjectQuery struct {
	Search string
	Sort   string
}

type Store interface {
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context, q ProjectQuery) ([]types.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateEndpoint(ctx context.Context, e *types.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*types.Endpoint, error)
	ListEndpoints(ctx context.Context, projectID string) ([]*types.Endpoint, error)
	UpdateEndpoint(ctx context.Context, e *types.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error

	Close() error
}
