package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/services/monitor"
)

const maxImportBytes = 1 << 20

func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return s.validate.Struct(dst)
}

func (s *Server) view(id string) (targetView, error) {
	t, err := s.eng.Target(id)
	if err != nil {
		return targetView{}, err
	}
	ts := monitor.TargetStatus{Target: t, Active: slices.Contains(s.eng.ActiveIDs(), id)}
	if rec, ok := s.eng.Status(id); ok {
		ts.Record = &rec
	}
	return newTargetView(ts), nil
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, code int, id string) {
	v, err := s.view(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, code, v)
}

func (s *Server) listTargets(w http.ResponseWriter, _ *http.Request) {
	all := s.eng.Statuses()
	out := make([]targetView, 0, len(all))
	for _, ts := range all {
		out = append(out, newTargetView(ts))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTarget(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

func (s *Server) createTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetReq
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var interval time.Duration
	if req.IntervalMs != nil {
		d, err := target.IntervalFromMs(*req.IntervalMs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		interval = d
	}
	t, err := s.eng.AddTarget(r.Context(), req.Name, req.URL, interval)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeView(w, r, http.StatusCreated, t.ID)
}

func (s *Server) patchTarget(w http.ResponseWriter, r *http.Request) {
	var req patchTargetReq
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.eng.EditTarget(r.Context(), id, monitor.TargetPatch{Name: req.Name, URL: req.URL}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeView(w, r, http.StatusOK, id)
}

func (s *Server) deleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.RemoveTarget(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// targetAction runs fn for the {id} param and answers with the fresh view.
func (s *Server) targetAction(fn func(r *http.Request, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := fn(r, id); err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeView(w, r, http.StatusOK, id)
	}
}

func (s *Server) activate(r *http.Request, id string) error   { return s.eng.Activate(r.Context(), id) }
func (s *Server) deactivate(r *http.Request, id string) error { return s.eng.Deactivate(r.Context(), id) }
func (s *Server) pause(_ *http.Request, id string) error      { return s.eng.Pause(id) }
func (s *Server) resume(_ *http.Request, id string) error     { return s.eng.Resume(id) }

func (s *Server) retest(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Retest(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) setTargetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalReq
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var d *time.Duration
	if req.IntervalMs != nil {
		v, err := target.IntervalFromMs(*req.IntervalMs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		d = &v
	}
	id := chi.URLParam(r, "id")
	if err := s.eng.SetTargetInterval(r.Context(), id, d); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeView(w, r, http.StatusOK, id)
}

// listStatus returns the active targets only, in activation order.
func (s *Server) listStatus(w http.ResponseWriter, _ *http.Request) {
	out := make([]targetView, 0)
	for _, ts := range s.eng.Statuses() {
		if ts.Active {
			out = append(out, newTargetView(ts))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.eng.Target(id); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, ok := s.eng.Status(id)
	if !ok {
		s.fail(w, r, monitor.ErrNotActive)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(rec))
}

func (s *Server) configView() configView {
	cfg := s.eng.Config()
	return configView{
		IntervalMs:           cfg.DefaultInterval.Milliseconds(),
		NotificationsEnabled: cfg.NotificationsEnabled,
		Permission:           s.eng.Permission(),
	}
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.configView())
}

func (s *Server) setGlobalInterval(w http.ResponseWriter, r *http.Request) {
	var req globalIntervalReq
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := target.IntervalFromMs(req.IntervalMs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.eng.SetGlobalInterval(r.Context(), d); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configView())
}

func (s *Server) setNotifications(w http.ResponseWriter, r *http.Request) {
	var req notificationsReq
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.eng.SetNotifications(r.Context(), *req.Enabled); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configView())
}

func (s *Server) listNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Notifications())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.HardRefresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	blob, err := s.eng.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="pingboard-export.json"`)
	_, _ = w.Write(blob)
}

func (s *Server) importSnapshot(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "snapshot too large"})
			return
		}
		s.fail(w, r, fmt.Errorf("%w: %v", errBadJSON, err))
		return
	}
	if err := s.eng.Import(r.Context(), blob); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) wipe(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Wipe(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
