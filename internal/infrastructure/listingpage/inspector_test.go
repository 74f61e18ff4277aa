package listingpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html><html><head>
<title>Fallback title</title>
<meta property="og:title" content=" Cafe Paris - Reviews ">
<meta property="og:site_name" content="Yelp">
<meta name="description" content="Best croissants in town">
<link rel="canonical" href="/biz/cafe-paris-lyon">
</head><body></body></html>`

func TestInspect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "review-insights")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	meta, err := NewInspector(nil, nil).Inspect(context.Background(), server.URL+"/biz/x?utm=1")
	require.NoError(t, err)

	assert.Equal(t, "Cafe Paris - Reviews", meta.Title)
	assert.Equal(t, "Yelp", meta.SiteName)
	assert.Equal(t, "Best croissants in town", meta.Description)
	assert.Equal(t, server.URL+"/biz/cafe-paris-lyon", meta.CanonicalURL)
	assert.True(t, meta.MentionsSlug("Cafe-Paris-Lyon"))
	assert.False(t, meta.MentionsSlug("other-place"))
}

func TestInspect_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewInspector(nil, nil).Inspect(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestInspect_RejectsNonHTTP(t *testing.T) {
	_, err := NewInspector(nil, nil).Inspect(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}
