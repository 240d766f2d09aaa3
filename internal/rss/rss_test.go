package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>"meter" - Google News</title>
<item>
  <title>Saudi utility awards AMI contract - Arab News</title>
  <link>https://news.google.com/articles/abc</link>
  <pubDate>Sun, 09 Mar 2025 10:00:00 GMT</pubDate>
  <description>&lt;a href="https://arabnews.com/x"&gt;Saudi utility awards AMI contract&lt;/a&gt;&amp;nbsp;&lt;font&gt;Arab News&lt;/font&gt;</description>
</item>
<item>
  <title>Old meter story - Somewhere</title>
  <link>https://news.google.com/articles/old</link>
  <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
</item>
</channel></rss>`

const plainFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>ESI Africa</title>
<item>
  <title>Eskom expands prepaid metering</title>
  <link>https://esi-africa.com/eskom</link>
  <description>Plain summary.</description>
</item>
</channel></rss>`

func TestGoogleNewsSearchURL(t *testing.T) {
	got := GoogleNewsSearchURL(GoogleNewsBaseURL, "smart meter", "ae")

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "smart meter", u.Query().Get("q"))
	assert.Equal(t, "AE", u.Query().Get("gl"))
	assert.Equal(t, "en-AE", u.Query().Get("hl"))
	assert.Equal(t, "AE:en", u.Query().Get("ceid"))
}

func TestNewGoogleNewsLimitsRegions(t *testing.T) {
	f := NewGoogleNews("", []string{"a", "b"}, []string{"ae", "sa", "za", "ng"}, 3, nil)
	assert.Len(t, f.URLs(), 6)
	assert.Equal(t, GoogleNewsName, f.Name())
}

func TestGoogleNewsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("gl") == "SA" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, googleFeed)
	}))
	defer srv.Close()

	f := NewGoogleNews(srv.URL+"/rss/search", []string{"meter"}, []string{"ae", "sa", "za"}, 3, srv.Client())
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := f.Fetch(context.Background(), since)
	require.NoError(t, err)

	// Same item from two regions collapses; the 2024 item is too old.
	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, "Saudi utility awards AMI contract - Arab News", a.Title)
	assert.Equal(t, "Arab News", a.Source)
	assert.Equal(t, GoogleNewsName, a.Provider)
	assert.Equal(t, "Saudi utility awards AMI contract Arab News", a.Summary)
	require.NotNil(t, a.PublishedAt)
}

func TestFeedsFetchUsesFeedTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, plainFeed)
	}))
	defer srv.Close()

	got, err := NewFeeds([]string{srv.URL}, srv.Client()).Fetch(context.Background(), time.Now())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "ESI Africa", got[0].Source)
	assert.Equal(t, FeedsName, got[0].Provider)
	assert.Equal(t, "Plain summary.", got[0].Summary)
	assert.Nil(t, got[0].PublishedAt)
}

func TestOutletFromTitle(t *testing.T) {
	assert.Equal(t, "Reuters", outletFromTitle("Grid deal signed - Reuters"))
	assert.Equal(t, "Unknown", outletFromTitle("No outlet here"))
}
