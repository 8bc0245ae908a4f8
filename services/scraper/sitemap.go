package scraper

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/justbri/reelscrape/shared/logger"
	sitemap "github.com/oxffaa/gopher-parse-sitemap"
)

// UnknownTitle is the title used when nothing better can be derived.
const UnknownTitle = "Unknown Movie"

// Candidate is a URL that looks like a movie page, with a title guessed from
// the URL alone.
type Candidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var (
	locPattern  = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)
	hrefPattern = regexp.MustCompile(`(?i)href=["'](.*?)["']`)

	yearPattern         = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	pageExtPattern      = regexp.MustCompile(`(?i)\.(html?|php|asp|jsp)$`)
	separatorPattern    = regexp.MustCompile(`[-_]`)
	releaseTokenPattern = regexp.MustCompile(`(?i)\b(720p|1080p|480p|4k|hdrip|webrip|bluray|dvdrip|camrip|hdcam)\b`)
	trailingYearPattern = regexp.MustCompile(`\s*\b(19|20)\d{2}\b\s*$`)
	wordStartPattern    = regexp.MustCompile(`\b\w`)
)

// excludedFragments mark listing, utility and asset URLs.
var excludedFragments = []string{
	"/category/", "/tag/", "/author/", "/page/", "/search/",
	"/contact", "/about", "/privacy", "/terms", "/sitemap",
	".xml", ".rss", ".feed", "/feed/", "/wp-", "/admin/",
	"/login", "/register", "/cart", "/checkout", "/account",
	".jpg", ".png", ".gif", ".css", ".js", ".ico",
}

var movieKeywords = []string{
	"/movie/", "/film/", "/watch/", "/download/", "/stream/",
	"hindi", "english", "bollywood", "hollywood", "dubbed",
	"720p", "1080p", "480p", "4k", "hdrip", "webrip", "bluray",
	"mkv", "mp4", "avi",
}

// IsMovieURL reports whether rawURL looks like a movie detail page.
func IsMovieURL(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return false
	}

	for _, frag := range excludedFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}

	for _, kw := range movieKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	return hasPath(lower) && yearPattern.MatchString(lower)
}

// hasPath reports whether the URL goes deeper than its domain.
func hasPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Trim(u.Path, "/") != ""
}

// ExtractTitleFromURL turns the last path segment into a readable title:
// "hindi-movie-2024-720p-hdrip" becomes "Hindi Movie".
func ExtractTitleFromURL(rawURL string) string {
	segment := lastSegment(rawURL)
	if segment == "" {
		return UnknownTitle
	}

	title := pageExtPattern.ReplaceAllString(segment, "")
	title = separatorPattern.ReplaceAllString(title, " ")
	title = releaseTokenPattern.ReplaceAllString(title, "")
	title = trailingYearPattern.ReplaceAllString(strings.TrimSpace(title), "")
	title = strings.Join(strings.Fields(title), " ")
	title = wordStartPattern.ReplaceAllStringFunc(title, strings.ToUpper)

	if title == "" {
		return UnknownTitle
	}
	return title
}

func lastSegment(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return p
		}
	}
	return ""
}

// Resolver turns a sitemap URL into movie candidates.
type Resolver struct {
	fetcher  *Fetcher
	maxDepth int
	logger   *slog.Logger
}

// NewResolver builds a resolver. maxDepth bounds how many levels of nested
// sitemap indexes are followed.
func NewResolver(fetcher *Fetcher, maxDepth int, log *slog.Logger) *Resolver {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Resolver{
		fetcher:  fetcher,
		maxDepth: maxDepth,
		logger:   logger.OrDefault(log).With("component", "sitemap"),
	}
}

// ResolveSitemap fetches sitemapURL and returns every movie-looking URL in
// document order. Duplicates are kept; storage drops them on insert.
func (r *Resolver) ResolveSitemap(ctx context.Context, sitemapURL string) ([]Candidate, error) {
	links, err := r.collect(ctx, sitemapURL, 0)
	if err != nil {
		return nil, err
	}

	candidates := []Candidate{}
	for _, link := range links {
		if !IsMovieURL(link) {
			continue
		}
		candidates = append(candidates, Candidate{
			Title: ExtractTitleFromURL(link),
			URL:   link,
		})
	}

	r.logger.Info("Resolved sitemap",
		"url", sitemapURL,
		"links", len(links),
		"candidates", len(candidates))
	return candidates, nil
}

func (r *Resolver) collect(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	base, err := url.Parse(sitemapURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid sitemap url %q", sitemapURL)
	}

	body, err := r.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	doc := ParseSitemapDocument(base, body)
	links := doc.Links
	for _, nested := range doc.Nested {
		if depth >= r.maxDepth {
			r.logger.Warn("Sitemap index nested too deep, skipping", "url", nested, "depth", depth+1)
			continue
		}
		children, err := r.collect(ctx, nested, depth+1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("Failed to resolve nested sitemap", "url", nested, "error", err)
			continue
		}
		links = append(links, children...)
	}
	return links, nil
}

// SitemapDocument is the parsed content of one sitemap response.
type SitemapDocument struct {
	IsXML  bool
	Links  []string
	Nested []string
}

// IsXMLSitemap applies the sitemap sniffing rule to a response body.
func IsXMLSitemap(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) ||
		bytes.Contains(body, []byte("<urlset")) ||
		bytes.Contains(body, []byte("<sitemapindex"))
}

// ParseSitemapDocument extracts page links (and nested sitemaps for an index)
// from an XML sitemap, or every href of an HTML page.
func ParseSitemapDocument(base *url.URL, body []byte) SitemapDocument {
	if !IsXMLSitemap(body) {
		return SitemapDocument{Links: scanHrefs(base, body)}
	}

	doc := SitemapDocument{IsXML: true}
	if bytes.Contains(body, []byte("<sitemapindex")) {
		err := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
			if loc := strings.TrimSpace(e.GetLocation()); loc != "" {
				doc.Nested = append(doc.Nested, loc)
			}
			return nil
		})
		if err != nil || len(doc.Nested) == 0 {
			doc.Nested = scanLocs(body)
		}
		return doc
	}

	err := sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		if loc := strings.TrimSpace(e.GetLocation()); loc != "" {
			doc.Links = append(doc.Links, loc)
		}
		return nil
	})
	if err != nil || len(doc.Links) == 0 {
		// Hand-written sitemaps often fail strict XML parsing.
		doc.Links = scanLocs(body)
	}
	return doc
}

func scanLocs(body []byte) []string {
	var locs []string
	for _, m := range locPattern.FindAllSubmatch(body, -1) {
		loc := strings.TrimSpace(html.UnescapeString(string(m[1])))
		loc = strings.TrimSuffix(strings.TrimPrefix(loc, "<![CDATA["), "]]>")
		if loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

func scanHrefs(base *url.URL, body []byte) []string {
	var links []string
	for _, m := range hrefPattern.FindAllSubmatch(body, -1) {
		if link, ok := resolveLink(base, html.UnescapeString(string(m[1]))); ok {
			links = append(links, link)
		}
	}
	return links
}

// resolveLink makes href absolute against base, dropping fragments and
// anything that is not http(s).
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
