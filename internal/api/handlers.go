// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/asankah/chromium-api-list/internal/apilist"
	"github.com/asankah/chromium-api-list/internal/chromium"
	"github.com/asankah/chromium-api-list/internal/fsutil"
	"github.com/asankah/chromium-api-list/internal/jobs"
	"github.com/asankah/chromium-api-list/internal/log"
	"github.com/asankah/chromium-api-list/internal/snapshot"
)

// Published lists are small (a few MB); anything larger indicates a problem.
const maxListBytes = 50 * 1024 * 1024

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleList serves the published canonical CSV.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	path, err := fsutil.ConfineRelPath(filepath.Dir(s.updater.TargetFile()), chromium.APIListTargetFile)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "list.invalid_path").Msg("list path rejected")
		writeError(w, http.StatusNotFound, "API list not available")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "API list not available")
			return
		}
		logger.Error().Err(err).Msg("failed to stat API list")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if info.Size() > maxListBytes {
		logger.Warn().
			Int64("size", info.Size()).
			Str(log.FieldEvent, "list.too_large").
			Msg("published list exceeds maximum size")
		writeError(w, http.StatusRequestEntityTooLarge, "API list too large")
		return
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is confined to the target dir
	if err != nil {
		logger.Error().Err(err).Msg("failed to read API list")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}

type entriesResponse struct {
	Count   int             `json:"count"`
	Entries []apilist.Entry `json:"entries"`
}

// handleEntries answers filtered member queries against the current
// generation. Rendered responses are cached until the next update.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	idx := s.currentIndex()
	if idx == nil {
		writeError(w, http.StatusNotFound, "API list not available")
		return
	}

	cacheKey := "entries?" + r.URL.RawQuery
	if body, ok := s.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(body)
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := idx.Select(filter)
	resp := entriesResponse{Count: len(entries), Entries: entries}
	if resp.Entries == nil {
		resp.Entries = []apilist.Entry{}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.cache.Set(cacheKey, buf.Bytes())

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func filterFromQuery(r *http.Request) (apilist.Filter, error) {
	q := r.URL.Query()
	filter := apilist.Filter{
		Interface:   q.Get("interface"),
		HighEntropy: q.Get("high_entropy"),
	}
	if v := q.Get("entity_type"); v != "" {
		et := apilist.EntityType(v)
		if !et.Valid() {
			return apilist.Filter{}, errors.New("unknown entity_type: " + v)
		}
		filter.EntityType = et
	}
	if v := q.Get("secure_context"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apilist.Filter{}, errors.New("secure_context must be a boolean")
		}
		filter.SecureContext = &b
	}
	return filter, nil
}

// handleStatus reports the last update outcome.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.Status()
	if status == nil {
		status = &jobs.Status{}
	}
	writeJSON(w, http.StatusOK, status)
}

// handleUpdate triggers an update cycle. Concurrent triggers get 409.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	status, ran, err := s.RunUpdate(r.Context(), "api")
	if !ran {
		writeError(w, http.StatusConflict, "update already in progress")
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrListMissing), errors.Is(err, jobs.ErrListIrregular):
			writeError(w, http.StatusFailedDependency, err.Error())
		case errors.Is(err, chromium.ErrDirtyTree), errors.Is(err, chromium.ErrUnexpectedChange):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSnapshots lists archived generations.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	metas, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if metas == nil {
		metas = []snapshot.Meta{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(metas), "snapshots": metas})
}

// handleSnapshot serves one archived generation as CSV.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, data, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Snapshot-Revision", meta.Revision)
	_, _ = w.Write(data)
}

// handleSnapshotDiff compares two archived generations.
func (s *Server) handleSnapshotDiff(w http.ResponseWriter, r *http.Request) {
	from, fromCSV, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSnapshotError(w, err)
		return
	}
	to, toCSV, err := s.store.Get(r.Context(), chi.URLParam(r, "other"))
	if err != nil {
		s.writeSnapshotError(w, err)
		return
	}

	fromList, err := apilist.Decode(bytes.NewReader(fromCSV))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot does not decode")
		return
	}
	toList, err := apilist.Decode(bytes.NewReader(toCSV))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot does not decode")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from": from,
		"to":   to,
		"diff": apilist.Diff(fromList, toList),
	})
}

func (s *Server) writeSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load snapshot")
}
