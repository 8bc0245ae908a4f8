package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Site furniture that never describes the movie itself.
var ignoredTypes = map[string]bool{
	"organization":          true,
	"website":               true,
	"breadcrumblist":        true,
	"person":                true,
	"imageobject":           true,
	"searchaction":          true,
	"sitenavigationelement": true,
	"webpage":               true,
	"collectionpage":        true,
	"searchresultspage":     true,
}

var primaryTypes = map[string]bool{
	"movie":        true,
	"videoobject":  true,
	"tvseries":     true,
	"tvepisode":    true,
	"creativework": true,
}

// parseStructuredData collects the JSON-LD objects of a page, movie objects
// first. Malformed blocks are skipped.
func parseStructuredData(doc *goquery.Document) []gjson.Result {
	var primary, rest []gjson.Result

	add := func(obj gjson.Result) {
		if !obj.IsObject() {
			return
		}
		types := schemaTypes(obj)
		for _, t := range types {
			if primaryTypes[t] {
				primary = append(primary, obj)
				return
			}
		}
		for _, t := range types {
			if ignoredTypes[t] {
				return
			}
		}
		rest = append(rest, obj)
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !gjson.Valid(raw) {
			return
		}
		root := gjson.Parse(raw)
		var items []gjson.Result
		if root.IsArray() {
			items = root.Array()
		} else {
			items = []gjson.Result{root}
		}
		for _, item := range items {
			if graph := item.Get("@graph"); graph.IsArray() {
				for _, node := range graph.Array() {
					add(node)
				}
				if !item.Get("@type").Exists() {
					continue
				}
			}
			add(item)
		}
	})

	return append(primary, rest...)
}

func schemaTypes(obj gjson.Result) []string {
	t := obj.Get("@type")
	if t.IsArray() {
		var out []string
		for _, v := range t.Array() {
			out = append(out, strings.ToLower(v.String()))
		}
		return out
	}
	if t.Exists() {
		return []string{strings.ToLower(t.String())}
	}
	return nil
}

// structured returns the first value found at any of paths, searching the
// page's objects in priority order.
func (p *Page) structured(paths ...string) gjson.Result {
	for _, obj := range p.ld {
		for _, path := range paths {
			if v := obj.Get(path); v.Exists() && v.Type != gjson.Null {
				return v
			}
		}
	}
	return gjson.Result{}
}

// structuredNames flattens a value that may be a string, an object with a
// name, or an array of either.
func structuredNames(v gjson.Result) string {
	switch {
	case v.IsArray():
		var names []string
		for _, item := range v.Array() {
			if n := structuredNames(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	case v.IsObject():
		return strings.TrimSpace(v.Get("name").String())
	default:
		return strings.TrimSpace(v.String())
	}
}

// structuredImage accepts a URL string, an ImageObject or an array of either.
func structuredImage(v gjson.Result) string {
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if u := structuredImage(item); u != "" {
				return u
			}
		}
		return ""
	case v.IsObject():
		if u := v.Get("url"); u.Exists() {
			return strings.TrimSpace(u.String())
		}
		return strings.TrimSpace(v.Get("contentUrl").String())
	default:
		return strings.TrimSpace(v.String())
	}
}
