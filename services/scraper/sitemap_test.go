package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/justbri/reelscrape/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveSitemaps(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSitemapFiltersAndTitles(t *testing.T) {
	srv := serveSitemaps(t, map[string]string{
		"/sitemap.xml": `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://site.example/hindi-movie-2024-720p-hdrip/</loc></url>
  <url><loc>https://site.example/about-us/</loc></url>
</urlset>`,
	})

	r := NewResolver(newTestFetcher(t, 0), 2, logger.Discard())
	got, err := r.ResolveSitemap(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Title: "Hindi Movie", URL: "https://site.example/hindi-movie-2024-720p-hdrip/"},
	}, got)
}

func TestResolveSitemapFollowsIndex(t *testing.T) {
	var srv *httptest.Server
	pages := map[string]string{}
	srv = serveSitemaps(t, pages)
	pages["/sitemap_index.xml"] = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/post-sitemap.xml</loc></sitemap>
  <sitemap><loc>%s/missing-sitemap.xml</loc></sitemap>
  <sitemap><loc>%s/post-sitemap2.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL, srv.URL)
	pages["/post-sitemap.xml"] = `<?xml version="1.0"?><urlset>
  <url><loc>https://site.example/pathaan-2023-hindi-1080p/</loc></url>
  <url><loc>https://site.example/category/action/</loc></url>
</urlset>`
	pages["/post-sitemap2.xml"] = `<?xml version="1.0"?><urlset>
  <url><loc>https://site.example/movie/jawan/</loc></url>
</urlset>`

	r := NewResolver(newTestFetcher(t, 0), 2, logger.Discard())
	got, err := r.ResolveSitemap(context.Background(), srv.URL+"/sitemap_index.xml")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Title: "Pathaan 2023 Hindi", URL: "https://site.example/pathaan-2023-hindi-1080p/"},
		{Title: "Jawan", URL: "https://site.example/movie/jawan/"},
	}, got)

	shallow := NewResolver(newTestFetcher(t, 0), 0, logger.Discard())
	got, err = shallow.ResolveSitemap(context.Background(), srv.URL+"/sitemap_index.xml")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveSitemapHTMLPage(t *testing.T) {
	srv := serveSitemaps(t, map[string]string{
		"/movies": `<html><body>
			<a href="/bollywood/dunki-2023/">Dunki</a>
			<a href='https://site.example/tag/drama/'>Drama</a>
			<a href="mailto:someone@example.com">Mail</a>
			<a href="/watch/salaar-part-1.html#comments">Salaar</a>
		</body></html>`,
	})

	r := NewResolver(newTestFetcher(t, 0), 1, logger.Discard())
	got, err := r.ResolveSitemap(context.Background(), srv.URL+"/movies")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Title: "Dunki", URL: srv.URL + "/bollywood/dunki-2023/"},
		{Title: "Salaar Part 1", URL: srv.URL + "/watch/salaar-part-1.html"},
	}, got)
}

func TestResolveSitemapMalformedXMLFallsBackToLocScan(t *testing.T) {
	srv := serveSitemaps(t, map[string]string{
		"/sitemap.xml": `<?xml version="1.0"?><urlset><url><loc>https://site.example/film/kgf-2022/</loc></url><url><loc>https://site.example/oops`,
	})

	r := NewResolver(newTestFetcher(t, 0), 1, logger.Discard())
	got, err := r.ResolveSitemap(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kgf", got[0].Title)
}

func TestResolveSitemapFetchFailure(t *testing.T) {
	srv := serveSitemaps(t, map[string]string{})

	r := NewResolver(newTestFetcher(t, 0), 1, logger.Discard())
	_, err := r.ResolveSitemap(context.Background(), srv.URL+"/nope.xml")
	assert.Error(t, err)

	_, err = r.ResolveSitemap(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestIsMovieURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://site.example/hindi-movie-2024-720p-hdrip/", true},
		{"https://site.example/movie/some-title/", true},
		{"https://site.example/some-title-2019/", true},
		{"https://site.example/Dubbed-Movie/", true},
		{"https://site.example/about-us/", false},
		{"https://site.example/category/hindi/", false},
		{"https://site.example/tag/1080p/", false},
		{"https://site.example/wp-content/uploads/poster.jpg", false},
		{"https://site.example/page/2/", false},
		{"https://site.example/plain-post/", false},
		{"https://site.example/", false},
		{"https://site.example/2024", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMovieURL(tt.url))
			assert.Equal(t, IsMovieURL(tt.url), IsMovieURL(tt.url))
		})
	}
}

func TestExtractTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://site.example/hindi-movie-2024-720p-hdrip/", "Hindi Movie"},
		{"https://site.example/movies/the_great_escape-1963.html", "The Great Escape"},
		{"https://site.example/watch/kgf-chapter-2-2022-bluray-1080p", "Kgf Chapter 2"},
		{"https://site.example/2049-blade-runner-2017/", "2049 Blade Runner"},
		{"https://site.example/720p-hdrip/", UnknownTitle},
		{"https://site.example/", UnknownTitle},
		{"https://site.example/caf%C3%A9-society-2016/", "Café Society"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := ExtractTitleFromURL(tt.url)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ExtractTitleFromURL(tt.url))
		})
	}
}

func TestIsXMLSitemap(t *testing.T) {
	assert.True(t, IsXMLSitemap([]byte("  <?xml version=\"1.0\"?><urlset></urlset>")))
	assert.True(t, IsXMLSitemap([]byte("<sitemapindex></sitemapindex>")))
	assert.False(t, IsXMLSitemap([]byte("<html><body></body></html>")))
}

func TestParseSitemapDocumentResolvesRelativeHrefs(t *testing.T) {
	base, _ := url.Parse("https://site.example/list/")
	doc := ParseSitemapDocument(base, []byte(`<a href="../film/x-2020/">x</a><a href="#top">top</a>`))
	assert.False(t, doc.IsXML)
	assert.Equal(t, []string{"https://site.example/film/x-2020/"}, doc.Links)
}
