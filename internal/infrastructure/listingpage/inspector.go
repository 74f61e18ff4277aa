package listingpage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout = 15 * time.Second
	maxPageBytes   = 2 << 20
	userAgent      = "Mozilla/5.0 (compatible; review-insights/1.0)"
)

// Metadata is what a public listing page says about itself
type Metadata struct {
	URL          string `json:"url"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	Title        string `json:"title,omitempty"`
	SiteName     string `json:"site_name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Inspector reads canonical and Open Graph tags from listing pages
type Inspector struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewInspector creates an inspector; a nil client gets a default timeout
func NewInspector(httpClient *http.Client, logger *slog.Logger) *Inspector {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{httpClient: httpClient, logger: logger}
}

// Inspect fetches a page and extracts its metadata
func (i *Inspector) Inspect(ctx context.Context, pageURL string) (*Metadata, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid listing url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	meta := Extract(doc)
	meta.URL = u.String()
	if meta.CanonicalURL != "" {
		if ref, err := u.Parse(meta.CanonicalURL); err == nil {
			meta.CanonicalURL = ref.String()
		}
	}

	i.logger.Debug("listing page inspected",
		slog.String("url", meta.URL),
		slog.String("title", meta.Title))
	return meta, nil
}

// Extract pulls metadata from an already parsed document
func Extract(doc *goquery.Document) *Metadata {
	meta := &Metadata{
		Title:       metaContent(doc, `meta[property="og:title"]`),
		SiteName:    metaContent(doc, `meta[property="og:site_name"]`),
		Description: metaContent(doc, `meta[property="og:description"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		meta.Description = metaContent(doc, `meta[name="description"]`)
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.CanonicalURL = strings.TrimSpace(href)
	} else {
		meta.CanonicalURL = metaContent(doc, `meta[property="og:url"]`)
	}
	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// MentionsSlug reports whether the page's URLs contain the provider slug
func (m *Metadata) MentionsSlug(slug string) bool {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return false
	}
	for _, candidate := range []string{m.CanonicalURL, m.URL} {
		if strings.Contains(strings.ToLower(candidate), slug) {
			return true
		}
	}
	return false
}
