package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ag3dash/server/internal/query"
	"github.com/ag3dash/server/internal/service"
	"github.com/ag3dash/server/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps controller errors to client errors; anything else is a
// failed accessor call.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrUnknownDimension):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidYear):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrStaleEpoch):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) sampleSetsHandler(w http.ResponseWriter, r *http.Request) {
	sets, err := s.sessions.Catalog().SampleSets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *server) optionsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := s.sessions.Catalog().Options(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	stats["sessions"] = s.sessions.Count()
	writeJSON(w, http.StatusOK, stats)
}

type sessionResponse struct {
	ID string `json:"id"`
	session.State
	SampleSetsSnippet string `json:"sample_sets_snippet"`
	Query             string `json:"query"`
}

func newSessionResponse(sess *session.Session, st session.State) sessionResponse {
	return sessionResponse{
		ID:                sess.ID,
		State:             st,
		SampleSetsSnippet: query.SampleSetsSnippet(st.SelectedSets),
		Query:             query.Compile(st.Filter).Expr(),
	}
}

func (s *server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	writeJSON(w, http.StatusOK, newSessionResponse(sess, sess.State()))
}

// selectionRequest carries either a full list of checked sample sets or a
// partial table edit. Epoch, when present, must match the current reset
// epoch.
type selectionRequest struct {
	SampleSets []string               `json:"sample_sets"`
	Rows       []session.SampleSetRow `json:"rows"`
	Epoch      *int                   `json:"epoch"`
}

func (s *server) selectionHandler(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SampleSets == nil && req.Rows == nil {
		http.Error(w, "one of sample_sets or rows is required", http.StatusBadRequest)
		return
	}

	sess := getSession(r)
	st, err := sess.Update(func(st session.State) (session.State, error) {
		if req.Epoch != nil {
			if err := session.CheckEpoch(st, *req.Epoch); err != nil {
				return st, err
			}
		}
		if req.Rows != nil {
			return session.OnSampleSetTableEdited(st, req.Rows), nil
		}
		return session.OnSelectionSubmitted(st, req.SampleSets), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, st))
}

func (s *server) resetHandler(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	st, _ := sess.Update(func(st session.State) (session.State, error) {
		return session.OnResetRequested(st), nil
	})
	writeJSON(w, http.StatusOK, newSessionResponse(sess, st))
}

type filterRequest struct {
	Values []interface{} `json:"values"`
}

func (s *server) filterHandler(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	values, err := filterValues(req.Values)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dimension := chi.URLParam(r, "dimension")
	sess := getSession(r)
	st, err := sess.Update(func(st session.State) (session.State, error) {
		return session.OnMultiselectChanged(st, dimension, values)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, st))
}

// filterValues accepts JSON strings and numbers, so years may be sent
// either way.
func filterValues(raw []interface{}) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		default:
			return nil, fmt.Errorf("unsupported filter value %v", v)
		}
	}
	return out, nil
}

func (s *server) clearFiltersHandler(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	st, _ := sess.Update(func(st session.State) (session.State, error) {
		return session.OnFiltersCleared(st), nil
	})
	writeJSON(w, http.StatusOK, newSessionResponse(sess, st))
}

func (s *server) queryHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.dashboard.Query(r.Context(), getSession(r).Predicate())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dashboard.Summary(r.Context(), getSession(r).State().SelectedSets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *server) locationsHandler(w http.ResponseWriter, r *http.Request) {
	scope, err := service.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	locs, err := s.dashboard.ScopedLocations(r.Context(), scope, getSession(r).State().SelectedSets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *server) mapHandler(w http.ResponseWriter, r *http.Request) {
	scope, err := service.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.dashboard.MapPNG(r.Context(), scope, getSession(r).State().SelectedSets)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// writeWorkbook renders the export; replaced in tests.
var writeWorkbook = service.WriteXLSX

func (s *server) exportHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.dashboard.Samples(r.Context(), getSession(r).Predicate())
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := writeWorkbook(&buf, recs); err != nil {
		log.Printf("[Export] Failed to write workbook: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ag3_samples.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}
