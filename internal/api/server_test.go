package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hbkim/keyword-reporter/internal/dispatcher"
	"github.com/hbkim/keyword-reporter/internal/metrics"
	queuemem "github.com/hbkim/keyword-reporter/internal/queue/memory"
	"github.com/hbkim/keyword-reporter/internal/report"
	storagemem "github.com/hbkim/keyword-reporter/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeIDGen struct {
	n int
}

func (f *fakeIDGen) NewID() (string, error) {
	f.n++
	return fmt.Sprintf("job-%d", f.n), nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type testServer struct {
	server *Server
	store  *storagemem.JobStore
	queue  *queuemem.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storagemem.NewJobStore()
	queue := queuemem.NewQueue(8)
	clock := &fixedClock{now: time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)}
	server := NewServer(store, dispatcher.New(queue, nil), &fakeIDGen{}, clock, nil)
	return &testServer{server: server, store: store, queue: queue}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob_CreatesAndEnqueues(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/jobs", `{"keyword":"강남 맛집"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var payload struct {
		Job report.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "job-1", payload.Job.ID)
	require.Equal(t, "강남 맛집", payload.Job.Keyword)
	require.Equal(t, report.JobStatusPending, payload.Job.Status)

	stored, err := ts.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, report.JobStatusPending, stored.Status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := ts.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "job-1", item.JobID)
	require.Equal(t, "강남 맛집", item.Keyword)
}

func TestSubmitJob_RejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/jobs", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/jobs", `{"keyword":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	long := strings.Repeat("가", maxKeywordRunes+1)
	rec = ts.do(t, http.MethodPost, "/v1/jobs", fmt.Sprintf(`{"keyword":%q}`, long))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs_NewestFirst(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/v1/jobs", `{"keyword":"첫 번째"}`).Code)
	require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/v1/jobs", `{"keyword":"두 번째"}`).Code)

	rec := ts.do(t, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Jobs []report.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Jobs, 2)
	require.Equal(t, "두 번째", payload.Jobs[0].Keyword)
	require.Equal(t, "첫 번째", payload.Jobs[1].Keyword)
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/v1/jobs", `{"keyword":"강남 맛집"}`).Code)

	rec := ts.do(t, http.MethodGet, "/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Job report.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "job-1", payload.Job.ID)

	rec = ts.do(t, http.MethodGet, "/v1/jobs/no-such-job", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", "").Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/metrics", "").Code)
}
