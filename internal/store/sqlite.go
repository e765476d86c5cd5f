package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	detect types.SchemaDetector
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used to report unreadable JSON columns.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// WithSchemaDetector overrides how stored response definitions are told
// apart from status-code maps.
func WithSchemaDetector(d types.SchemaDetector) Option {
	return func(s *SQLiteStore) { s.detect = d }
}

func NewSQLiteStore(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, logger: slog.Default(), detect: types.LooksLikeSchema}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT 'Folder',
			color TEXT NOT NULL DEFAULT 'blue',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			module_name TEXT NOT NULL DEFAULT '',
			business_desc TEXT NOT NULL DEFAULT '',
			tech_notes TEXT NOT NULL DEFAULT '',
			security TEXT NOT NULL DEFAULT 'secure',
			auth_mechanism TEXT NOT NULL DEFAULT '',
			roles TEXT,
			persona_key TEXT NOT NULL DEFAULT '',
			persona_mode TEXT NOT NULL DEFAULT 'auto',
			request_spec TEXT,
			request_query TEXT,
			request_headers TEXT,
			response_spec TEXT,
			prompt_prefs TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_project ON endpoints(project_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *types.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Icon == "" {
		p.Icon = "Folder"
	}
	if p.Color == "" {
		p.Color = "blue"
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects(id,name,description,icon,color,created_at,updated_at) VALUES(?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Icon, p.Color, p.CreatedAt, p.UpdatedAt)
	return err
}

const projectColumns = `p.id,p.name,p.description,p.icon,p.color,p.created_at,p.updated_at,
	(SELECT COUNT(*) FROM endpoints e WHERE e.project_id=p.id)`

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id=?`, id)
	var p types.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Icon, &p.Color, &p.CreatedAt, &p.UpdatedAt, &p.EndpointCount); err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, q ProjectQuery) ([]types.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p`
	var args []interface{}
	if search := strings.TrimSpace(q.Search); search != "" {
		query += ` WHERE p.name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	switch q.Sort {
	case SortName:
		query += ` ORDER BY p.name COLLATE NOCASE ASC`
	default:
		query += ` ORDER BY p.updated_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Project, 0)
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Icon, &p.Color, &p.CreatedAt, &p.UpdatedAt, &p.EndpointCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM endpoints WHERE project_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, "project", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateEndpoint(ctx context.Context, e *types.Endpoint) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	if e.PromptPrefs == nil {
		e.PromptPrefs = types.DefaultPrefs()
	}
	cols, err := encodeColumns(e)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.CreatedAt, e.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := touchProject(ctx, tx, e.ProjectID, now); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO endpoints(id,project_id,title,method,path,module_name,business_desc,tech_notes,security,auth_mechanism,roles,persona_key,persona_mode,request_spec,request_query,request_headers,response_spec,prompt_prefs,created_at,updated_at)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.Title, e.Method, e.Path, e.ModuleName, e.BusinessDesc, e.TechNotes, e.Security, e.AuthMechanism,
		cols.roles, e.PersonaKey, e.PersonaMode, cols.requestSpec, cols.requestQuery, cols.requestHeaders, cols.responseSpec, cols.promptPrefs,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const endpointColumns = `id,project_id,title,method,path,module_name,business_desc,tech_notes,security,auth_mechanism,roles,persona_key,persona_mode,request_spec,request_query,request_headers,response_spec,prompt_prefs,created_at,updated_at`

func (s *SQLiteStore) GetEndpoint(ctx context.Context, id string) (*types.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE id=?`, id)
	e, err := s.scanEndpoint(row)
	if err != nil {
		return nil, notFound(err, "endpoint", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListEndpoints(ctx context.Context, projectID string) ([]*types.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE project_id=? ORDER BY updated_at DESC, title ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*types.Endpoint, 0)
	for rows.Next() {
		e, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEndpoint overwrites the editable fields of e. ID, project and
// creation time are never changed.
func (s *SQLiteStore) UpdateEndpoint(ctx context.Context, e *types.Endpoint) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	cols, err := encodeColumns(e)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE endpoints SET title=?,method=?,path=?,module_name=?,business_desc=?,tech_notes=?,security=?,auth_mechanism=?,roles=?,persona_key=?,persona_mode=?,request_spec=?,request_query=?,request_headers=?,response_spec=?,prompt_prefs=?,updated_at=? WHERE id=?`,
		e.Title, e.Method, e.Path, e.ModuleName, e.BusinessDesc, e.TechNotes, e.Security, e.AuthMechanism,
		cols.roles, e.PersonaKey, e.PersonaMode, cols.requestSpec, cols.requestQuery, cols.requestHeaders, cols.responseSpec, cols.promptPrefs,
		now, e.ID)
	if err != nil {
		return err
	}
	if err := requireRow(res, "endpoint", e.ID); err != nil {
		return err
	}
	row := tx.QueryRowContext(ctx, `SELECT project_id, created_at FROM endpoints WHERE id=?`, e.ID)
	if err := row.Scan(&e.ProjectID, &e.CreatedAt); err != nil {
		return err
	}
	if err := touchProject(ctx, tx, e.ProjectID, now); err != nil {
		return err
	}
	e.UpdatedAt = now
	return tx.Commit()
}

func (s *SQLiteStore) DeleteEndpoint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "endpoint", id)
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanEndpoint(r rowScanner) (*types.Endpoint, error) {
	var e types.Endpoint
	var roles, reqSpec, reqQuery, reqHeaders, respSpec, prefs sql.NullString
	if err := r.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Method, &e.Path, &e.ModuleName, &e.BusinessDesc, &e.TechNotes,
		&e.Security, &e.AuthMechanism, &roles, &e.PersonaKey, &e.PersonaMode, &reqSpec, &reqQuery, &reqHeaders,
		&respSpec, &prefs, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.RequestSpec, err = schema.ParseOrDefault([]byte(reqSpec.String)); err != nil {
		s.warn(e.ID, "request_spec", err)
	}
	if e.RequestQuery, err = schema.Parse([]byte(reqQuery.String)); err != nil {
		s.warn(e.ID, "request_query", err)
	}
	if e.RequestHeaders, err = schema.Parse([]byte(reqHeaders.String)); err != nil {
		s.warn(e.ID, "request_headers", err)
	}
	if e.ResponseSpec, err = types.ParseResponseSpec([]byte(respSpec.String), s.detect); err != nil {
		s.warn(e.ID, "response_spec", err)
	}

	e.Roles = types.Roles{}
	if roles.String != "" {
		if err := json.Unmarshal([]byte(roles.String), &e.Roles); err != nil {
			s.warn(e.ID, "roles", err)
			e.Roles = types.Roles{}
		}
	}
	e.PromptPrefs = types.PromptPrefs{}
	if prefs.String != "" {
		if err := json.Unmarshal([]byte(prefs.String), &e.PromptPrefs); err != nil {
			s.warn(e.ID, "prompt_prefs", err)
			e.PromptPrefs = types.DefaultPrefs()
		}
	}
	return &e, nil
}

func (s *SQLiteStore) warn(id, column string, err error) {
	s.logger.Warn("unreadable stored column, using default", "endpoint", id, "column", column, "error", err)
}

type columns struct {
	roles, requestSpec, requestQuery, requestHeaders, responseSpec, promptPrefs string
}

func encodeColumns(e *types.Endpoint) (columns, error) {
	var c columns
	fields := []struct {
		dst  *string
		v    interface{}
		skip bool
	}{
		{&c.roles, e.Roles, false},
		{&c.requestSpec, e.RequestSpec, false},
		{&c.requestQuery, e.RequestQuery, e.RequestQuery == nil},
		{&c.requestHeaders, e.RequestHeaders, e.RequestHeaders == nil},
		{&c.responseSpec, e.ResponseSpec, false},
		{&c.promptPrefs, e.PromptPrefs, false},
	}
	for _, f := range fields {
		if f.skip {
			continue
		}
		b, err := json.Marshal(f.v)
		if err != nil {
			return c, fmt.Errorf("encode endpoint: %w", err)
		}
		*f.dst = string(b)
	}
	return c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func touchProject(ctx context.Context, tx execer, projectID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at=? WHERE id=?`, now, projectID)
	if err != nil {
		return err
	}
	return requireRow(res, "project", projectID)
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
