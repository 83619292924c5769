package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/routine"
	"github.com/markb/routinecat/internal/scan"
	"github.com/markb/routinecat/internal/store"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", "status", status, "error", err)
	}
}

// writeCatalogError maps catalog errors onto HTTP statuses.
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *routine.FetchError
	var refreshErr *routine.RefreshError
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nobody reads the response.
		log.FromContext(r.Context()).Debug("request cancelled", "path", r.URL.Path)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, scan.ErrRoutineNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrUnresolvableContainer):
		s.writeError(w, http.StatusUnprocessableEntity, "unresolvable_container", err.Error())
	case errors.As(err, &fetchErr):
		log.FromContext(r.Context()).Error("parameter fetch failed", "routine", fetchErr.Routine, "error", fetchErr.Err)
		s.writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
	case errors.As(err, &refreshErr):
		s.writeError(w, http.StatusBadGateway, "refresh_failed", err.Error())
	default:
		log.FromContext(r.Context()).Error("catalog request failed", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// container resolves the schema in the path and the optional module query
// parameter.
func (s *Server) container(r *http.Request) (catalog.Container, error) {
	schema, err := s.store.Schema(r.Context(), chi.URLParam(r, "schema"))
	if err != nil {
		return nil, err
	}
	if module := r.URL.Query().Get("module"); module != "" {
		return s.store.Module(r.Context(), schema, module)
	}
	return schema, nil
}

func (s *Server) routine(r *http.Request) (*routine.Descriptor, error) {
	c, err := s.container(r)
	if err != nil {
		return nil, err
	}
	return s.catalog.Routine(r.Context(), c, chi.URLParam(r, "name"))
}

type schemaResponse struct {
	Name    string   `json:"name"`
	Modules []string `json:"modules"`
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.store.Schemas(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	resp := make([]schemaResponse, 0, len(schemas))
	for _, sc := range schemas {
		modules, err := s.store.Modules(r.Context(), sc)
		if err != nil {
			s.writeCatalogError(w, r, err)
			return
		}
		names := make([]string, 0, len(modules))
		for _, m := range modules {
			names = append(names, m.Name)
		}
		resp = append(resp, schemaResponse{Name: sc.Name, Modules: names})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	c, err := s.container(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	res, err := s.catalog.Routines(r.Context(), c)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	routines := make([]routineResponse, 0, len(res.Routines))
	for _, d := range res.Routines {
		routines = append(routines, newRoutineResponse(d))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scan_id":   res.ScanID,
		"container": res.Container,
		"routines":  routines,
		"failures":  res.Failures,
	})
}

// routineResponse adds the derived properties of a descriptor.
type routineResponse struct {
	*routine.Descriptor
	FullyQualifiedName string                `json:"fully_qualified_name"`
	Schema             string                `json:"schema"`
	ProcedureType      routine.ProcedureType `json:"procedure_type"`
	State              routine.ObjectState   `json:"state"`
	Icon               string                `json:"icon"`
}

func newRoutineResponse(d *routine.Descriptor) routineResponse {
	return routineResponse{
		Descriptor:         d,
		FullyQualifiedName: d.FullyQualifiedName(),
		Schema:             d.Schema().Name,
		ProcedureType:      d.ProcedureType(),
		State:              d.State(),
		Icon:               routine.Icon(d),
	}
}

func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	d, err := s.routine(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRoutineResponse(d))
}

func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	d, err := s.routine(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	params, err := s.catalog.Parameters(r.Context(), d)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"routine":    d.FullyQualifiedName(),
		"parameters": params,
	})
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	d, err := s.routine(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	format := routine.ParseDDLFormat(r.URL.Query().Get("format"))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"routine":    d.FullyQualifiedName(),
		"format":     format.String(),
		"definition": routine.Definition(d, routine.DefinitionOptions{Format: format}),
	})
}

func (s *Server) handleRefreshContainer(w http.ResponseWriter, r *http.Request) {
	c, err := s.container(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	s.catalog.RefreshContainer(c)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "refreshed",
		"container": catalog.DisplayName(c),
	})
}

func (s *Server) handleRefreshRoutine(w http.ResponseWriter, r *http.Request) {
	d, err := s.routine(r)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	if err := s.catalog.RefreshRoutine(r.Context(), d); err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "refreshed",
		"routine": d.FullyQualifiedName(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := log.Filter{
		ScanID:    q.Get("scan_id"),
		Container: q.Get("container"),
		RequestID: q.Get("request_id"),
		Level:     q.Get("level"),
		Limit:     100,
	}
	if raw := q.Get("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid_lines", "lines must be a positive integer")
			return
		}
		f.Limit = v
	}
	entries := log.BufferedEntries(f)
	if entries == nil {
		s.writeError(w, http.StatusNotFound, "buffer_disabled", "log buffer is disabled")
		return
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Text
	}
	total, capacity, _ := log.GetBufferStats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"lines":    lines,
		"entries":  entries,
		"total":    total,
		"capacity": capacity,
	})
}
