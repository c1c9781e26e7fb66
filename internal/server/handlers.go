package server

import (
	"errors"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nao1215/civicmap/internal/identity"
	"github.com/nao1215/civicmap/internal/model"
	"github.com/nao1215/civicmap/internal/nearby"
	"github.com/nao1215/civicmap/internal/report"
)

type reportResponse struct {
	Success bool          `json:"success"`
	Report  *model.Report `json:"report"`
}

type transitionResponse struct {
	Success bool                      `json:"success"`
	Report  *model.Report             `json:"report"`
	Entry   *model.StatusHistoryEntry `json:"entry"`
}

type listResponse struct {
	Success bool            `json:"success"`
	Total   int             `json:"total"`
	Reports []*model.Report `json:"reports"`
}

type uploadedImage struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentHash string `json:"content_hash"`
	HasGPS      bool   `json:"has_gps"`
}

type uploadResponse struct {
	Success bool            `json:"success"`
	Images  []uploadedImage `json:"images"`
}

type transitionRequest struct {
	Status   string `json:"status"`
	Comment  string `json:"comment"`
	Priority string `json:"priority"`
}

type assignRequest struct {
	OfficialID string `json:"official_id"`
	Comment    string `json:"comment"`
}

type closeRequest struct {
	Comment string `json:"comment"`
}

// actor authenticates the request.
func (s *Server) actor(r *http.Request) (model.Actor, error) {
	return s.svc.Identity.FromRequest(r)
}

// optionalActor authenticates the request when a token is present. A
// missing token yields the zero Actor; a bad one is still an error.
func (s *Server) optionalActor(r *http.Request) (model.Actor, error) {
	a, err := s.svc.Identity.FromRequest(r)
	if errors.Is(err, identity.ErrMissingToken) {
		return model.Actor{}, nil
	}
	return a, err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("latitude"), "latitude", true, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lon, err := floatParam(q.Get("longitude"), "longitude", true, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radius, err := floatParam(q.Get("radius_km"), "radius_km", false, model.DefaultRadiusKM)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query, err := nearby.NewQuery(lat, lon, radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.Nearby.Query(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter, err := parseFilter(r, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reports, err := s.svc.Lifecycle.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, rep := range reports {
		redact(rep, actor)
	}
	if reports == nil {
		reports = make([]*model.Report, 0)
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Total: len(reports), Reports: reports})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var in model.NewReport
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.svc.Lifecycle.Create(r.Context(), actor, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reportResponse{Success: true, Report: created})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := s.optionalActor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, err := s.svc.Lifecycle.Get(r.Context(), mux.Vars(r)["id"], true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	redact(rep, actor)
	writeJSON(w, http.StatusOK, reportResponse{Success: true, Report: rep})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	rep, err := s.svc.Lifecycle.Get(r.Context(), id, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.svc.Lifecycle.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	redactHistory(rep, history, viewer)
	redact(rep, viewer)
	writeJSON(w, http.StatusOK, report.NewHistoryDocument(rep, history))
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req transitionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var priority *model.Priority
	if req.Priority != "" {
		p, err := model.ParsePriority(req.Priority)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		priority = &p
	}

	rep, entry, err := s.svc.Lifecycle.Transition(r.Context(), actor, mux.Vars(r)["id"], to, req.Comment, priority)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Success: true, Report: rep, Entry: entry})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req assignRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, entry, err := s.svc.Lifecycle.Assign(r.Context(), actor, mux.Vars(r)["id"], req.OfficialID, req.Comment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Success: true, Report: rep, Entry: entry})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req closeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, entry, err := s.svc.Lifecycle.Close(r.Context(), actor, mux.Vars(r)["id"], req.Comment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Success: true, Report: rep, Entry: entry})
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, err := s.svc.Lifecycle.Upvote(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	redact(rep, actor)
	writeJSON(w, http.StatusOK, reportResponse{Success: true, Report: rep})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Lifecycle.Delete(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUpload stores every file of the multipart "image" field and
// attaches it to the report. Permission is checked before any bytes are
// stored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	rep, err := s.svc.Lifecycle.CheckAttach(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(s.opts.MaxImageSize); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = model.NewValidationError("image", err.Error())
		}
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		s.writeError(w, r, model.NewValidationError("image", "no file in form field \"image\""))
		return
	}

	uploaded := make([]uploadedImage, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		stored, err := s.svc.Images.Save(id, f)
		_ = f.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		err = s.svc.Lifecycle.AttachImage(r.Context(), actor, model.Image{
			ReportID:    id,
			Filename:    stored.Filename,
			ContentHash: stored.ContentHash,
			HasGPS:      stored.HasGPS,
		})
		if err != nil {
			if !slices.Contains(rep.Images, stored.Filename) {
				_ = s.svc.Images.Remove(stored.Filename)
			}
			s.writeError(w, r, err)
			return
		}

		s.logger.Info("image attached",
			"report", id,
			"file", stored.Filename,
			"has_gps", stored.HasGPS,
			"bytes", stored.Size,
		)
		uploaded = append(uploaded, uploadedImage{
			Filename:    stored.Filename,
			URL:         nearby.ImagePathPrefix + stored.Filename,
			ContentHash: stored.ContentHash,
			HasGPS:      stored.HasGPS,
		})
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Success: true, Images: uploaded})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	f, err := s.svc.Images.Open(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, path.Base(name), info.ModTime(), f)
}

// parseFilter reads list filters from the query string. mine=true limits
// the list to the actor's own reports.
func parseFilter(r *http.Request, actor model.Actor) (model.ReportFilter, error) {
	q := r.URL.Query()
	var filter model.ReportFilter

	if v := q.Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	if v := q.Get("priority"); v != "" {
		p, err := model.ParsePriority(v)
		if err != nil {
			return filter, err
		}
		filter.Priority = p
	}
	if v := q.Get("issue_type"); v != "" {
		it, err := model.ParseIssueType(v)
		if err != nil {
			return filter, err
		}
		filter.IssueType = it
	}
	filter.Zone = strings.TrimSpace(q.Get("zone"))
	filter.AssignedOfficialID = strings.TrimSpace(q.Get("assigned_official_id"))

	if v := q.Get("mine"); v != "" {
		mine, err := strconv.ParseBool(v)
		if err != nil {
			return filter, model.NewValidationError("mine", "must be a boolean")
		}
		if mine {
			filter.ReporterID = actor.ID
		}
	}
	return filter, nil
}

// floatParam parses a query parameter. Missing optional parameters yield
// def.
func floatParam(raw, name string, required bool, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, model.NewValidationError(name, "is required")
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.NewValidationError(name, "must be a number")
	}
	return v, nil
}

// redact hides the reporter of an anonymous report from everyone but the
// reporter and staff.
func redact(r *model.Report, viewer model.Actor) {
	if hidesReporter(r, viewer) {
		r.ReporterID = ""
	}
}

// redactHistory blanks the actor of ledger entries written by the reporter
// of an anonymous report, under the same rule as redact. It must run before
// redact clears r.ReporterID.
func redactHistory(r *model.Report, history []model.StatusHistoryEntry, viewer model.Actor) {
	if !hidesReporter(r, viewer) || r.ReporterID == "" {
		return
	}
	for i := range history {
		if history[i].ActorID == r.ReporterID {
			history[i].ActorID = ""
		}
	}
}

func hidesReporter(r *model.Report, viewer model.Actor) bool {
	return r.IsAnonymous && !viewer.Owns(r) && !viewer.CanManageStatus()
}
