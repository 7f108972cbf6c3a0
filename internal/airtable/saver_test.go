package airtable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaver_ArchivePostsRecord(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.Write([]byte(`{"id":"rec123"}`))
	}))
	defer server.Close()

	saver := New(Config{Token: "key-1", BaseID: "app1", TableName: "작업 기록", BaseURL: server.URL}, server.Client(), nil)

	err := saver.Archive(context.Background(), Record{
		Title:     "강남 맛집 리포트",
		Content:   "본문",
		Status:    "COMPLETED",
		Images:    []string{"https://telegra.ph/file/a.jpg", "https://telegra.ph/file/b.jpg"},
		SourceURL: "https://a.tistory.com/entry/1",
	})
	require.NoError(t, err)
	require.Equal(t, "/v0/app1/작업 기록", gotPath)

	fields := gotBody["fields"].(map[string]any)
	require.Equal(t, "강남 맛집 리포트", fields["Name"])
	require.Equal(t, "COMPLETED", fields["Status"])

	attachments := fields["Attachments"].([]any)
	require.Len(t, attachments, 2)
	first := attachments[0].(map[string]any)
	require.Equal(t, "https://telegra.ph/file/a.jpg", first["url"])
	require.Equal(t, "image_1.jpg", first["filename"])
}

func TestSaver_ArchiveReturnsAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"type":"UNKNOWN_FIELD_NAME"}}`))
	}))
	defer server.Close()

	saver := New(Config{Token: "key-1", BaseID: "app1", TableName: "Reports", BaseURL: server.URL}, server.Client(), nil)

	err := saver.Archive(context.Background(), Record{Title: "리포트"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "422")
}
