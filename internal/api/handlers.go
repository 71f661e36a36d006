package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"audittrail/internal/domain"
	"audittrail/internal/importer"
	"audittrail/internal/textdiff"
	"audittrail/internal/versions"
)

type errorResponse struct {
	Error string `json:"error"`
}

type segmentResponse struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type opResponse struct {
	Kind     string `json:"kind"`
	OldStart int    `json:"oldStart"`
	OldEnd   int    `json:"oldEnd"`
	NewStart int    `json:"newStart"`
	NewEnd   int    `json:"newEnd"`
}

type compareResponse struct {
	TaskID   string            `json:"taskId"`
	From     int               `json:"from"`
	To       int               `json:"to"`
	Diff     domain.DiffCounts `json:"diff"`
	Segments []segmentResponse `json:"segments"`
}

type diffRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type diffResponse struct {
	Diff     domain.DiffCounts `json:"diff"`
	Ops      []opResponse      `json:"ops"`
	Segments []segmentResponse `json:"segments"`
	Summary  string            `json:"summary"`
}

type summarizeRequest struct {
	Content string `json:"content"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type importRequest struct {
	URL   string `json:"url"`
	Watch bool   `json:"watch"`
}

type importResponse struct {
	Version domain.TaskVersion `json:"version"`
	Created bool               `json:"created"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.Tasks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if tasks == nil {
		tasks = []domain.Task{}
	}

	s.writeJSON(w, r, http.StatusOK, tasks)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, history)
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var draft versions.Draft
	if err := decodeJSON(r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.svc.Save(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, v)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	n, err := versionNumber(r.PathValue("n"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.svc.Version(r.Context(), r.PathValue("id"), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, v)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	n, err := versionNumber(r.PathValue("n"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	patch, err := s.svc.Patch(r.Context(), r.PathValue("id"), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, patch)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	from, err := versionNumber(r.URL.Query().Get("from"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	to, err := versionNumber(r.URL.Query().Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cmp, err := s.svc.Compare(r.Context(), r.PathValue("id"), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, compareResponse{
		TaskID:   cmp.TaskID,
		From:     cmp.From.VersionNumber,
		To:       cmp.To.VersionNumber,
		Diff:     versions.Counts(cmp.Result),
		Segments: segmentsOf(cmp.Result),
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	v, created, err := s.svc.Import(r.Context(), r.PathValue("id"), req.URL, req.Watch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	s.writeJSON(w, r, status, importResponse{Version: v, Created: created})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.svc.Summarize(req.Old, req.New)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result := summary.Basis
	ops := make([]opResponse, 0, len(result.Ops))
	for _, op := range result.Ops {
		ops = append(ops, opResponse{
			Kind:     op.Kind.String(),
			OldStart: op.Old.Start,
			OldEnd:   op.Old.End,
			NewStart: op.New.Start,
			NewEnd:   op.New.End,
		})
	}

	s.writeJSON(w, r, http.StatusOK, diffResponse{
		Diff:     versions.Counts(result),
		Ops:      ops,
		Segments: segmentsOf(result),
		Summary:  summary.Text,
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.svc.Summarize("", req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, summarizeResponse{Summary: summary.Text})
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}

	return nil
}

func versionNumber(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: version number %q", errBadRequest, raw)
	}

	return n, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, versions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, versions.ErrEmptyDraft),
		errors.Is(err, versions.ErrInvalidTaskID),
		errors.Is(err, textdiff.ErrInvalidInput),
		errors.Is(err, importer.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrUnsupportedContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "Failed to handle request",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)

		message = http.StatusText(status)
	}

	s.writeJSON(w, r, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write response",
			"error", err,
			"path", r.URL.Path)
	}
}

func segmentsOf(d textdiff.DiffResult) []segmentResponse {
	segments := d.Segments()

	out := make([]segmentResponse, 0, len(segments))
	for _, seg := range segments {
		out = append(out, segmentResponse{Kind: seg.Kind.String(), Text: seg.Text})
	}

	return out
}
