// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asankah/chromium-api-list/internal/apilist"
	"github.com/asankah/chromium-api-list/internal/cache"
	"github.com/asankah/chromium-api-list/internal/chromium"
	"github.com/asankah/chromium-api-list/internal/config"
	"github.com/asankah/chromium-api-list/internal/health"
	"github.com/asankah/chromium-api-list/internal/jobs"
	"github.com/asankah/chromium-api-list/internal/snapshot"
)

const publishedCSV = `interface,name,entity_type,arguments,idl_type,syntactic_form,use_counter,secure_context,high_entropy,source_file,source_line
Navigator,,interface,,,,,,,navigator.idl,10
Navigator,hardwareConcurrency,attribute,,unsigned long,Navigator.hardwareConcurrency,NavigatorHardwareConcurrency,,Direct,navigator.idl,42
Screen,availWidth,attribute,,long,Screen.availWidth,,,Direct,screen.idl,12
USB,getDevices,operation,,Promise<sequence<USBDevice>>,USB.getDevices(),,True,,usb.idl,30
`

type fakeUpdater struct {
	mu      sync.Mutex
	target  string
	status  *jobs.Status
	err     error
	delay   time.Duration
	runs    int
	release chan struct{}
}

func (f *fakeUpdater) Run(ctx context.Context) (*jobs.Status, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.status, f.err
}

func (f *fakeUpdater) TargetFile() string { return f.target }

func (f *fakeUpdater) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type fakeSnapshots struct {
	metas []snapshot.Meta
	data  map[string][]byte
	err   error
}

func (f *fakeSnapshots) List(ctx context.Context) ([]snapshot.Meta, error) {
	return f.metas, f.err
}

func (f *fakeSnapshots) Get(ctx context.Context, id string) (snapshot.Meta, []byte, error) {
	if f.err != nil {
		return snapshot.Meta{}, nil, f.err
	}
	data, ok := f.data[id]
	if !ok {
		return snapshot.Meta{}, nil, snapshot.ErrNotFound
	}
	for _, m := range f.metas {
		if m.ID == id {
			return m, data, nil
		}
	}
	return snapshot.Meta{ID: id}, data, nil
}

func writeListFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, chromium.APIListTargetFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestServer(t *testing.T, updater *fakeUpdater, store SnapshotReader) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.UpdateRateLimit = 100
	return New(cfg, updater, store, cache.NewMemoryCache(time.Minute), health.NewManager("test"))
}

func TestHandleListServesPublishedCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/list", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, publishedCSV, rec.Body.String())
}

func TestHandleListMissingFile(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, &fakeUpdater{target: filepath.Join(dir, chromium.APIListTargetFile)}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/list", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEntriesFilters(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)
	router := srv.Router()

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 4},
		{"by interface", "?interface=navigator", 2},
		{"by entity type", "?entity_type=attribute", 2},
		{"high entropy", "?high_entropy=Direct", 2},
		{"secure context", "?secure_context=true", 1},
		{"combined", "?interface=Navigator&entity_type=attribute", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries"+tc.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp entriesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp.Count)
			assert.Len(t, resp.Entries, tc.want)
		})
	}
}

func TestHandleEntriesBadQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)
	router := srv.Router()

	for _, query := range []string{"?entity_type=gadget", "?secure_context=maybe"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHandleEntriesCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries?interface=Navigator", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries?interface=Navigator", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestHandleEntriesNoListYet(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, &fakeUpdater{target: filepath.Join(dir, chromium.APIListTargetFile)}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	updater := &fakeUpdater{
		target: path,
		status: &jobs.Status{Entries: 4, Revision: "abc123"},
	}
	srv := newTestServer(t, updater, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status jobs.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "abc123", status.Revision)
	assert.Equal(t, 1, updater.runCount())
}

func TestHandleUpdateFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path, err: errors.New("ninja exploded")}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status jobs.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.Error, "ninja exploded")
}

func TestHandleUpdateMissingList(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path, err: jobs.ErrListMissing}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update", nil))
	assert.Equal(t, http.StatusFailedDependency, rec.Code)
}

func TestHandleUpdateConflictWhileRunning(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	updater := &fakeUpdater{
		target:  path,
		status:  &jobs.Status{},
		release: make(chan struct{}),
	}
	srv := newTestServer(t, updater, nil)
	router := srv.Router()

	done := make(chan struct{})
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update", nil))
		close(done)
	}()

	require.Eventually(t, func() bool { return updater.runCount() == 1 }, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(updater.release)
	<-done
	assert.Equal(t, 1, updater.runCount())
}

func TestRunUpdateRefreshesIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, chromium.APIListTargetFile)
	updater := &fakeUpdater{target: path, status: &jobs.Status{Entries: 4}}
	srv := newTestServer(t, updater, nil)

	require.Nil(t, srv.currentIndex())

	writeListFile(t, dir, publishedCSV)
	_, ran, err := srv.RunUpdate(context.Background(), "test")
	require.NoError(t, err)
	require.True(t, ran)
	require.NotNil(t, srv.currentIndex())
	assert.Equal(t, 3, srv.currentIndex().Interfaces())
}

func TestHandleSnapshots(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	store := &fakeSnapshots{
		metas: []snapshot.Meta{
			{ID: "s2", Revision: "rev2", Entries: 4},
			{ID: "s1", Revision: "rev1", Entries: 3},
		},
		data: map[string][]byte{"s1": []byte(publishedCSV), "s2": []byte(publishedCSV)},
	}
	srv := newTestServer(t, &fakeUpdater{target: path}, store)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count     int             `json:"count"`
		Snapshots []snapshot.Meta `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "s2", resp.Snapshots[0].ID)
}

func TestHandleSnapshotByID(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	store := &fakeSnapshots{
		metas: []snapshot.Meta{{ID: "s1", Revision: "rev1"}},
		data:  map[string][]byte{"s1": []byte(publishedCSV)},
	}
	srv := newTestServer(t, &fakeUpdater{target: path}, store)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rev1", rec.Header().Get("X-Snapshot-Revision"))
	assert.Equal(t, publishedCSV, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSnapshotDiff(t *testing.T) {
	const olderCSV = `interface,name,entity_type,arguments,idl_type,syntactic_form,use_counter,secure_context,high_entropy,source_file,source_line
Navigator,,interface,,,,,,,navigator.idl,10
Navigator,hardwareConcurrency,attribute,,unsigned long,Navigator.hardwareConcurrency,NavigatorHardwareConcurrency,,Direct,navigator.idl,42
`
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	store := &fakeSnapshots{
		metas: []snapshot.Meta{{ID: "old"}, {ID: "new"}},
		data: map[string][]byte{
			"old": []byte(olderCSV),
			"new": []byte(publishedCSV),
		},
	}
	srv := newTestServer(t, &fakeUpdater{target: path}, store)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/old/diff/new", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Diff apilist.Delta `json:"diff"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Diff.Added, 2)
	assert.Empty(t, resp.Diff.Removed)
}

func TestHealthEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)
	router := srv.Router()

	for _, endpoint := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, endpoint, nil))
		assert.Equal(t, http.StatusOK, rec.Code, endpoint)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	dir := t.TempDir()
	path := writeListFile(t, dir, publishedCSV)
	srv := newTestServer(t, &fakeUpdater{target: path}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
}
