package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hbkim/keyword-reporter/internal/report"
)

type fakeFetcher struct {
	pages    map[string]string
	err      error
	requests []fetchCall
}

type fetchCall struct {
	url     string
	referer string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, referer string) ([]byte, error) {
	f.requests = append(f.requests, fetchCall{url: rawURL, referer: referer})
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(page), nil
}

const tistoryPage = `<html><head><title>fallback title</title></head><body>
<h1>  Best Makguksu in Chuncheon  </h1>
<div class="entry-content">
  <p>A long writeup about noodles and broth.</p>
  <img src="https://blog.kakaocdn.net/dn/abc/img.jpg?knm=tfile.jpg&amp;x=1">
  <img data-src="https://t1.daumcdn.net/thumb/R1280x0/?scode=x&amp;fname=y.jpg">
  <img src="https://t1.daumcdn.net/tistory_admin/banner.png">
  <img src="https://t1.daumcdn.net/attach/lib/emoticon/smile.gif">
  <img src="https://external.example.com/not-platform.jpg">
  <img src="https://blog.kakaocdn.net/dn/abc/img.jpg?knm=tfile.jpg">
</div>
<img src="https://blog.kakaocdn.net/dn/outside/scope.jpg">
</body></html>`

func TestTistory_Extract(t *testing.T) {
	t.Parallel()

	url := "https://food.tistory.com/entry/makguksu"
	fetcher := &fakeFetcher{pages: map[string]string{url: tistoryPage}}
	ex := NewSet(fetcher, Config{MaxImagesPerPage: 20}, nil)

	article, ok := ex.Extract(context.Background(), report.SourceLink{URL: url, Kind: report.SourceTistory})
	require.True(t, ok)

	require.Equal(t, "Best Makguksu in Chuncheon", article.Title)
	require.Equal(t, "A long writeup about noodles and broth.", article.Body)
	require.Equal(t, url, article.SourceURL)
	require.Equal(t, url, article.Referer)
	require.Equal(t, report.SourceTistory, article.Kind)

	// Tracking query stripped, thumb rendition query kept, admin and
	// emoticon assets rejected, non-platform host rejected, duplicate
	// collapsed, out-of-container image ignored.
	require.Equal(t, []string{
		"https://blog.kakaocdn.net/dn/abc/img.jpg",
		"https://t1.daumcdn.net/thumb/R1280x0/?scode=x&fname=y.jpg",
	}, article.Images)
}

func TestTistory_FallsBackToBodyScopeAndDocumentTitle(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>doc title</title></head><body>
	<img src="https://blog.kakaocdn.net/dn/zzz/photo.png"></body></html>`
	url := "https://bare.tistory.com/100"
	fetcher := &fakeFetcher{pages: map[string]string{url: page}}
	ex := NewTistory(fetcher, Config{MaxImagesPerPage: 20}, nil)

	article, ok := ex.Extract(context.Background(), report.SourceLink{URL: url, Kind: report.SourceTistory})
	require.True(t, ok)
	require.Equal(t, "doc title", article.Title)
	require.Empty(t, article.Body)
	require.Equal(t, []string{"https://blog.kakaocdn.net/dn/zzz/photo.png"}, article.Images)
}

func TestTistory_ImageCapRespected(t *testing.T) {
	t.Parallel()

	page := `<div class="entry-content">
	<img src="https://blog.kakaocdn.net/dn/1/a.jpg">
	<img src="https://blog.kakaocdn.net/dn/2/b.jpg">
	<img src="https://blog.kakaocdn.net/dn/3/c.jpg">
	</div>`
	url := "https://many.tistory.com/1"
	fetcher := &fakeFetcher{pages: map[string]string{url: page}}
	ex := NewTistory(fetcher, Config{MaxImagesPerPage: 2}, nil)

	article, ok := ex.Extract(context.Background(), report.SourceLink{URL: url})
	require.True(t, ok)
	require.Len(t, article.Images, 2)
}

func TestTistory_NoResultOnFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	ex := NewTistory(fetcher, Config{MaxImagesPerPage: 20}, nil)

	_, ok := ex.Extract(context.Background(), report.SourceLink{URL: "https://x.tistory.com/1"})
	require.False(t, ok)
}

func TestSet_GenericKindYieldsNoResult(t *testing.T) {
	t.Parallel()

	ex := NewSet(&fakeFetcher{}, Config{}, nil)
	_, ok := ex.Extract(context.Background(), report.SourceLink{
		URL:  "https://example.com/post",
		Kind: report.SourceGeneric,
	})
	require.False(t, ok)
}
