package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/apiprompt/internal/export"
	"github.com/yourorg/apiprompt/internal/filter"
	"github.com/yourorg/apiprompt/internal/prompt"
	"github.com/yourorg/apiprompt/internal/store"
	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Default     string           `json:"default"`
		Personas    []prompt.Persona `json:"personas"`
		Preferences []prompt.Label   `json:"preferences"`
	}{s.gen.ResolvePersona(""), prompt.Personas(), prompt.PreferenceLabels()})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := store.ProjectQuery{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}
	projects, err := s.store.ListProjects(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
		Color       string `json:"color"`
	}
	if !decode(w, r, &req) {
		return
	}
	p := types.NewProject(req.Name, req.Description)
	if req.Icon != "" {
		p.Icon = req.Icon
	}
	if req.Color != "" {
		p.Color = req.Color
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "project created", slog.String("project", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "project deleted", slog.String("project", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.fail(w, r, err)
		return
	}
	endpoints, err := s.store.ListEndpoints(r.Context(), projectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := r.URL.Query()
	fuzzy, _ := strconv.ParseBool(v.Get("fuzzy"))
	writeJSON(w, http.StatusOK, filter.Apply(endpoints, filter.Query{
		Search:   v.Get("search"),
		Method:   strings.ToUpper(v.Get("method")),
		Security: v.Get("security"),
		Role:     v.Get("role"),
		Fuzzy:    fuzzy,
	}))
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	p, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	endpoints, err := s.store.ListEndpoints(r.Context(), projectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := export.BuildOpenAPI(p, endpoints)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func (s *Server) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	e := types.NewEndpoint(chi.URLParam(r, "projectID"), "", "", "")
	if !decode(w, r, e) {
		return
	}
	e.ProjectID = chi.URLParam(r, "projectID")
	if err := s.store.CreateEndpoint(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "endpoint created", slog.String("endpoint", e.ID))
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleUpdateEndpoint replaces the editable fields of a record.
func (s *Server) handleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	e := &types.Endpoint{}
	if !decode(w, r, e) {
		return
	}
	e.ID = chi.URLParam(r, "endpointID")
	if err := s.store.UpdateEndpoint(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "endpoint updated", slog.String("endpoint", e.ID))
	s.reload(w, r, e.ID)
}

func (s *Server) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	if err := s.store.DeleteEndpoint(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "endpoint deleted", slog.String("endpoint", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeText(w, s.gen.Generate(e))
}

// handlePreview renders a record that has not been saved. Only the fields
// sent are rendered; creation defaults do not apply.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	e := &types.Endpoint{}
	if !decode(w, r, e) {
		return
	}
	e.Normalize()
	writeText(w, s.gen.Generate(e))
}

func (s *Server) handleSchemaOp(w http.ResponseWriter, r *http.Request) {
	var op schema.Op
	if !decode(w, r, &op) {
		return
	}
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	section := chi.URLParam(r, "section")
	if err := e.EditSection(section, op); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateEndpoint(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "schema edited", slog.String("endpoint", e.ID), slog.String("section", section), slog.String("action", op.Action))
	root, _ := e.Section(section)
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleCheckSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := readBody(w, r)
	if !ok {
		return
	}
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	root, err := e.Section(chi.URLParam(r, "section"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := export.CheckSample(root, sample); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// handlePutResponse adds or replaces the schema for one status code. An
// empty body stores the default root.
func (s *Server) handlePutResponse(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	var node *schema.Node
	if len(strings.TrimSpace(string(data))) > 0 {
		n, err := schema.Parse(data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		node = schema.Normalize(n)
	}
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := e.ResponseSpec.Set(chi.URLParam(r, "status"), node); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateEndpoint(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.ResponseSpec)
}

func (s *Server) handleDeleteResponse(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEndpoint(r.Context(), chi.URLParam(r, "endpointID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !e.ResponseSpec.Delete(chi.URLParam(r, "status")) {
		writeError(w, http.StatusNotFound, "status not defined")
		return
	}
	if err := s.store.UpdateEndpoint(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.ResponseSpec)
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	sample, ok := readBody(w, r)
	if !ok {
		return
	}
	n, err := schema.Infer(sample)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.store.GetEndpoint(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) audit(r *http.Request, msg string, attrs ...any) {
	if p, ok := PrincipalFrom(r.Context()); ok {
		attrs = append(attrs, slog.String("principal", p.Fingerprint))
	}
	s.log.Info(msg, attrs...)
}

// fail maps store, record and tree errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalid),
		errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrInvalidKind),
		errors.Is(err, schema.ErrInvalidOp),
		errors.Is(err, schema.ErrRootDelete),
		errors.Is(err, schema.ErrNotObject),
		errors.Is(err, schema.ErrNotArray),
		errors.Is(err, schema.ErrUnknownNode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
