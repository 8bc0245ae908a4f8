package scraper

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/justbri/reelscrape/shared/format"
)

// Fallback values for fields no strategy could fill.
const (
	NoDescription       = "No description available"
	PlaceholderImageURL = "https://via.placeholder.com/300x450?text=No+Image"
	Unknown             = "Unknown"
	NotExtracted        = "Not extracted"
	DefaultLanguage     = "Hindi"
)

// strategy pulls one field value out of a page, or returns "".
type strategy func(p *Page) string

// field is the ordered extraction cascade for one record field.
type field struct {
	name       string
	strategies []strategy
	fallback   string
	limit      int
	clean      func(string) string
}

// resolve runs the cascade. A panicking strategy is treated as a miss.
func (f field) resolve(p *Page) string {
	value := ""
	for i, s := range f.strategies {
		if value = runStrategy(p, f.name, i, s); value != "" {
			break
		}
	}
	if value == "" {
		value = f.fallback
	} else if f.clean != nil {
		value = f.clean(value)
	}
	if f.limit > 0 {
		value = format.Truncate(value, f.limit)
	}
	return value
}

func runStrategy(p *Page, name string, index int, s strategy) (value string) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
			logStrategyPanic(name, index, r)
		}
	}()
	return strings.TrimSpace(s(p))
}

// fromStructured reads the first JSON-LD string value at any path.
func fromStructured(paths ...string) strategy {
	return func(p *Page) string {
		return strings.TrimSpace(p.structured(paths...).String())
	}
}

// fromMeta reads the content of the first matching meta property or name.
func fromMeta(minLen int, keys ...string) strategy {
	return func(p *Page) string {
		for _, key := range keys {
			sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)
			content, ok := p.Doc.Find(sel).First().Attr("content")
			content = format.CollapseSpace(content)
			if ok && len(content) > minLen {
				return content
			}
		}
		return ""
	}
}

// textRule is a labelled pattern over the visible page text.
type textRule struct {
	re    *regexp.Regexp
	group int
}

func label(expr string) textRule {
	return textRule{re: regexp.MustCompile(expr), group: 1}
}

func whole(expr string) textRule {
	return textRule{re: regexp.MustCompile(expr), group: 0}
}

var trailingJunk = regexp.MustCompile(`[,;\s]+$`)

// fromText returns the first rule match longer than minLen characters.
func fromText(minLen int, rules ...textRule) strategy {
	return func(p *Page) string {
		for _, rule := range rules {
			m := rule.re.FindStringSubmatch(p.Text)
			if m == nil || rule.group >= len(m) {
				continue
			}
			value := trailingJunk.ReplaceAllString(strings.TrimSpace(m[rule.group]), "")
			if len([]rune(value)) > minLen {
				return value
			}
		}
		return ""
	}
}

// fromSelector returns the text of the first matched element accepted by ok.
func fromSelector(selector string, ok func(string) bool) strategy {
	return func(p *Page) string {
		var found string
		p.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := elementText(s)
			if text != "" && (ok == nil || ok(text)) {
				found = text
				return false
			}
			return true
		})
		return found
	}
}

func longerThan(n int) func(string) bool {
	return func(s string) bool { return len([]rune(s)) > n }
}

func matches(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

var titleField = field{
	name: "title",
	strategies: []strategy{
		fromStructured("name", "headline"),
		fromMeta(0, "og:title", "twitter:title"),
		documentTitle,
		fromSelector("h1", nil),
	},
	fallback: UnknownTitle,
	limit:    255,
}

var siteSuffix = regexp.MustCompile(`\s*[-|]\s*[^-|]*$`)

// documentTitle is <title> without its " - Site Name" suffix.
func documentTitle(p *Page) string {
	title := elementText(p.Doc.Find("title").First())
	if stripped := strings.TrimSpace(siteSuffix.ReplaceAllString(title, "")); stripped != "" {
		return stripped
	}
	return title
}

var descriptionField = field{
	name: "description",
	strategies: []strategy{
		fromStructured("description"),
		fromMeta(20, "og:description", "twitter:description", "description"),
		fromSelector(`.story, .plot, .synopsis, .description, [class*="story"], [class*="plot"], [class*="synopsis"]`, longerThan(50)),
		fromSelector("p", longerThan(50)),
	},
	fallback: NoDescription,
}

var imageField = field{
	name: "image_url",
	strategies: []strategy{
		validImage(func(p *Page) string { return structuredImage(p.structured("image", "thumbnailUrl")) }),
		validImage(fromMeta(0, "og:image", "og:image:url", "twitter:image")),
		posterImage(`.poster img, .thumbnail img, .movie-poster img, .cover img, .featured-image img, [class*="poster"] img, [class*="thumbnail"] img, [class*="cover"] img`, false),
		posterImage("img", true),
	},
	fallback: PlaceholderImageURL,
}

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|bmp|svg)$`)

// IsValidImageURL accepts absolute http(s) URLs with an image extension and
// inline data:image URIs.
func IsValidImageURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(lower, "data:image/") {
		return true
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	clean := lower
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	return imageExtPattern.MatchString(path.Base(clean))
}

func validImage(s strategy) strategy {
	return func(p *Page) string {
		if resolved, ok := p.Resolve(s(p)); ok && IsValidImageURL(resolved) {
			return resolved
		}
		return ""
	}
}

var lazySrcAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// posterImage returns the first valid image under selector. skipLogos drops
// images whose alt or class mention a logo.
func posterImage(selector string, skipLogos bool) strategy {
	return func(p *Page) string {
		var found string
		p.Doc.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if skipLogos {
				alt := strings.ToLower(img.AttrOr("alt", ""))
				class := strings.ToLower(img.AttrOr("class", ""))
				if strings.Contains(alt, "logo") || strings.Contains(class, "logo") {
					return true
				}
			}
			for _, attr := range lazySrcAttrs {
				src, ok := img.Attr(attr)
				if !ok {
					continue
				}
				if resolved, ok := p.Resolve(src); ok && IsValidImageURL(resolved) {
					found = resolved
					return false
				}
			}
			return true
		})
		return found
	}
}

const monthNames = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*`

var releaseDateField = field{
	name: "release_date",
	strategies: []strategy{
		fromStructured("datePublished", "releaseDate"),
		fromText(3,
			label(`(?i)Release Dates?:\s*([^\n\r|]+)`),
			label(`(?i)Released[:\s]+([^\n\r|]+)`),
			label(`(?i)\bDate[:\s]+([^\n\r|]+)`),
			label(`(?i)\bYear[:\s]+(\d{4})`),
			label(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`),
			label(`\b(\d{4}[/-]\d{1,2}[/-]\d{1,2})\b`),
			whole(`(?i)\b`+monthNames+`\s+\d{1,2},?\s+\d{4}\b`),
			whole(`(?i)\b\d{1,2}\s+`+monthNames+`\s+\d{4}\b`),
		),
		fromSelector(`.release-date, .date, .year, [class*="release"], [class*="date"]`, matches(regexp.MustCompile(`\d{4}|\d{1,2}[/-]\d{1,2}`))),
	},
	fallback: Unknown,
	limit:    50,
}

var genreField = field{
	name: "genre",
	strategies: []strategy{
		func(p *Page) string { return structuredNames(p.structured("genre")) },
		fromText(2,
			label(`(?i)Genres?:\s*([^\n\r|]+)`),
			label(`(?i)Categor(?:y|ies):\s*([^\n\r|]+)`),
			label(`(?i)\bType:\s*([^\n\r|]+)`),
			label(`(?i)\bGenres?[:\s]+([^\n\r|]+)`),
		),
		fromSelector(`.genre, .category, .tags, [class*="genre"], [class*="category"]`, nil),
	},
	fallback: Unknown,
	limit:    100,
	clean:    CleanGenre,
}

var (
	dropdownArtifact = regexp.MustCompile(`^\s*(?:â–¾|▾)\s*`)
	camelBoundary    = regexp.MustCompile(`([a-z])([A-Z])`)
)

// CleanGenre strips the dropdown arrow some themes render before the genre
// list and splits run-together names ("ActionThriller" -> "Action, Thriller").
func CleanGenre(genre string) string {
	genre = dropdownArtifact.ReplaceAllString(genre, "")
	genre = camelBoundary.ReplaceAllString(genre, "$1, $2")
	return format.CollapseSpace(genre)
}

var ratingField = field{
	name: "rating",
	strategies: []strategy{
		func(p *Page) string {
			v := p.structured("aggregateRating.ratingValue")
			if !v.Exists() || strings.TrimSpace(v.String()) == "" {
				return ""
			}
			return strings.TrimSpace(v.String()) + "/10"
		},
		fromStructured("contentRating"),
		fromText(0,
			label(`(?i)Ratings?:\s*([^\n\r|]+)`),
			label(`(?i)IMDb[\s:]+(\d+(?:\.\d+)?)`),
			label(`(?i)Scores?:\s*([^\n\r|]+)`),
			whole(`\b\d+\.\d+\s*/\s*10\b`),
			whole(`(?i)\b\d+\.\d+\s*stars?\b`),
			label(`(?i:\bRated)[:\s]+(PG-13|NC-17|PG|R|G)\b`),
		),
		fromSelector(`.rating, .score, .imdb-rating, [class*="rating"], [class*="score"]`, matches(regexp.MustCompile(`\d`))),
	},
	fallback: Unknown,
	limit:    50,
}

var (
	isoHoursMinutes = regexp.MustCompile(`^PT(\d+)H(\d+)M`)
	isoHours        = regexp.MustCompile(`^PT(\d+)H$`)
	isoMinutes      = regexp.MustCompile(`^PT(\d+)M`)
	hoursMinutes    = regexp.MustCompile(`(?i)\b(\d+)\s*h(?:ours?|rs?)?\s*(\d+)?\s*m(?:in(?:utes?)?)?\b`)
)

// FormatISODuration turns "PT2H10M" into "2h 10m" and "PT95M" into "95m".
// Other values are returned unchanged.
func FormatISODuration(d string) string {
	d = strings.TrimSpace(d)
	if m := isoHoursMinutes.FindStringSubmatch(d); m != nil {
		return m[1] + "h " + m[2] + "m"
	}
	if m := isoHours.FindStringSubmatch(d); m != nil {
		return m[1] + "h"
	}
	if m := isoMinutes.FindStringSubmatch(d); m != nil {
		return m[1] + "m"
	}
	return d
}

var durationField = field{
	name: "duration",
	strategies: []strategy{
		func(p *Page) string { return FormatISODuration(p.structured("duration").String()) },
		fromText(0,
			label(`(?i)Durations?:\s*([^\n\r|]+)`),
			label(`(?i)Runtimes?:\s*([^\n\r|]+)`),
			label(`(?i)Lengths?:\s*([^\n\r|]+)`),
		),
		func(p *Page) string {
			m := hoursMinutes.FindStringSubmatch(p.Text)
			if m == nil {
				return ""
			}
			if m[2] != "" {
				return m[1] + "h " + m[2] + "m"
			}
			return strings.TrimSpace(m[0])
		},
		fromText(0,
			whole(`(?i)\b\d+\s*min(?:utes?|s)?\b`),
			whole(`(?i)\b\d+:\d+\s*(?:h|hours?)\b`),
		),
		fromSelector(`.duration, .runtime, .length, [class*="duration"], [class*="runtime"]`, nil),
	},
	fallback: Unknown,
	limit:    50,
}

var directorField = field{
	name: "director",
	strategies: []strategy{
		func(p *Page) string { return structuredNames(p.structured("director")) },
		fromText(2,
			label(`(?i)Directors?:\s*([^\n\r|]+)`),
			label(`(?i)Directed by:?\s*([^\n\r|]+)`),
			label(`(?i)\bDirectors?[:\s]+([^\n\r|]+)`),
		),
		fromSelector(`.director, [class*="director"]`, nil),
	},
	fallback: Unknown,
	limit:    200,
}

var castField = field{
	name: "cast",
	strategies: []strategy{
		func(p *Page) string { return structuredNames(p.structured("actor", "actors")) },
		fromText(2,
			label(`(?i)Cast:\s*([^\n\r|]+)`),
			label(`(?i)Stars?:\s*([^\n\r|]+)`),
			label(`(?i)Starring:\s*([^\n\r|]+)`),
			label(`(?i)Actors?:\s*([^\n\r|]+)`),
			label(`(?i)\bCast[:\s]+([^\n\r|]+)`),
		),
		fromSelector(`.cast, .actors, .stars, [class*="cast"], [class*="actor"]`, nil),
	},
	fallback: Unknown,
}

var qualityField = field{
	name: "quality",
	strategies: []strategy{
		fromText(0, label(`(?i)Quality:\s*([^\n\r|]+)`)),
		func(p *Page) string {
			return DetectQuality(p.URL.Path + " " + elementText(p.Doc.Find("title").First()))
		},
	},
	fallback: NotExtracted,
	limit:    50,
}

var sizeField = field{
	name: "size",
	strategies: []strategy{
		fromText(0,
			label(`(?i)\bSize:\s*([^\n\r|]+)`),
			whole(`(?i)\b\d+(?:\.\d+)?\s*(?:GB|MB)\b`),
		),
	},
	fallback: NotExtracted,
	limit:    50,
}

var languageField = field{
	name: "language",
	strategies: []strategy{
		fromText(0, label(`(?i)Languages?:\s*([^\n\r|]+)`)),
		fromSelector(`.language, [class*="language"]`, nil),
	},
	fallback: DefaultLanguage,
	limit:    100,
}
