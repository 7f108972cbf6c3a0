package rehost

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbkim/keyword-reporter/internal/imaging"
	"github.com/hbkim/keyword-reporter/internal/report"
)

type fetchCall struct {
	url     string
	referer string
}

type fakeFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls []fetchCall
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, referer string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{url: rawURL, referer: referer})
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

type fakeBackend struct {
	name  string
	url   string
	err   error
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Upload(context.Context, []byte) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.url, nil
}

func smallImage(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func permissiveEncoder() *imaging.Encoder {
	return imaging.New(imaging.Options{
		MinBytes:       1,
		MinWidth:       1,
		MinHeight:      1,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10,
		MaxSidePx:      1600,
		JPEGQuality:    80,
	})
}

func TestService_UsesPrimaryBackend(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: smallImage(t)}
	primary := &fakeBackend{name: "telegraph", url: "https://telegra.ph/file/a.jpg"}
	fallback := &fakeBackend{name: "catbox", url: "https://files.catbox.moe/a.jpg"}

	svc := New(fetcher, permissiveEncoder(), []Backend{primary, fallback}, 0, Hooks{}, nil)

	url, ok := svc.Rehost(context.Background(), report.ImageCandidate{
		RawURL:  "https://blog.kakaocdn.net/dn/img.png",
		Referer: "https://writer.tistory.com/entry/post",
	})
	require.True(t, ok)
	require.Equal(t, "https://telegra.ph/file/a.jpg", url)
	require.Equal(t, 1, primary.calls)
	require.Zero(t, fallback.calls)
	require.Equal(t, "https://writer.tistory.com/entry/post", fetcher.calls[0].referer)
}

func TestService_FallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: smallImage(t)}
	primary := &fakeBackend{name: "telegraph", err: errors.New("service unavailable")}
	fallback := &fakeBackend{name: "catbox", url: "https://files.catbox.moe/a.jpg"}

	var uploads []string
	hooks := Hooks{UploadResult: func(host, outcome string) {
		uploads = append(uploads, host+":"+outcome)
	}}
	svc := New(fetcher, permissiveEncoder(), []Backend{primary, fallback}, 0, hooks, nil)

	url, ok := svc.Rehost(context.Background(), report.ImageCandidate{RawURL: "https://blog.kakaocdn.net/dn/img.png"})
	require.True(t, ok)
	require.Equal(t, "https://files.catbox.moe/a.jpg", url)
	require.Equal(t, []string{"telegraph:failed", "catbox:ok"}, uploads)
}

func TestService_GivesUpWhenAllBackendsFail(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: smallImage(t)}
	primary := &fakeBackend{name: "telegraph", err: errors.New("down")}
	fallback := &fakeBackend{name: "catbox", err: errors.New("down")}

	svc := New(fetcher, permissiveEncoder(), []Backend{primary, fallback}, 0, Hooks{}, nil)

	_, ok := svc.Rehost(context.Background(), report.ImageCandidate{RawURL: "https://blog.kakaocdn.net/dn/img.png"})
	require.False(t, ok)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
}

func TestService_SkipsUploadForRejectedImage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte("definitely not an image")}
	primary := &fakeBackend{name: "telegraph", url: "https://telegra.ph/file/a.jpg"}

	var verdicts []string
	hooks := Hooks{ImageOutcome: func(v string) { verdicts = append(verdicts, v) }}
	svc := New(fetcher, permissiveEncoder(), []Backend{primary}, 0, hooks, nil)

	_, ok := svc.Rehost(context.Background(), report.ImageCandidate{RawURL: "https://blog.kakaocdn.net/dn/img.png"})
	require.False(t, ok)
	require.Zero(t, primary.calls)
	require.Equal(t, []string{"undecodable"}, verdicts)
}

func TestService_DefaultRefererWhenOriginUnknown(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: errors.New("connection reset")}
	svc := New(fetcher, permissiveEncoder(), nil, 0, Hooks{}, nil)

	_, ok := svc.Rehost(context.Background(), report.ImageCandidate{RawURL: "https://blog.kakaocdn.net/dn/img.png"})
	require.False(t, ok)
	require.Equal(t, DefaultReferer, fetcher.calls[0].referer)
}

func TestTelegraph_UploadAndVerify(t *testing.T) {
	t.Parallel()

	var heads int
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "image.jpg", header.Filename)
		w.Write([]byte(`[{"src":"/file/abc123.jpg"}]`))
	})
	mux.HandleFunc("/file/abc123.jpg", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		heads++
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	backend := NewTelegraph(server.URL, true, server.Client(), nil)

	url, err := backend.Upload(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Equal(t, server.URL+"/file/abc123.jpg", url)
	require.Equal(t, 1, heads)
}

func TestTelegraph_PhantomUploadFailsVerification(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"src":"/file/ghost.jpg"}]`))
	})
	mux.HandleFunc("/file/ghost.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	backend := NewTelegraph(server.URL, true, server.Client(), nil)

	_, err := backend.Upload(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "verification")
}

func TestTelegraph_RejectsErrorPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"File type invalid"}`))
	}))
	defer server.Close()

	backend := NewTelegraph(server.URL, true, server.Client(), nil)

	_, err := backend.Upload(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
}

func TestCatbox_Upload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "fileupload", r.FormValue("reqtype"))
		_, _, err := r.FormFile("fileToUpload")
		require.NoError(t, err)
		w.Write([]byte("https://files.catbox.moe/xyz.jpg\n"))
	}))
	defer server.Close()

	backend := NewCatbox(server.URL, server.Client())

	url, err := backend.Upload(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Equal(t, "https://files.catbox.moe/xyz.jpg", url)
}

func TestCatbox_RejectsNonURLBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Internal error: disk full"))
	}))
	defer server.Close()

	backend := NewCatbox(server.URL, server.Client())

	_, err := backend.Upload(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
}
