package seo

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/sitelens/models"
	"golang.org/x/net/publicsuffix"
)

// Precompiled selectors for the hot extraction paths.
var (
	selTitle    = cascadia.MustCompile("title")
	selMeta     = cascadia.MustCompile("meta[name]")
	selMetaProp = cascadia.MustCompile("meta[property]")
	selRelLink  = cascadia.MustCompile("link[rel]")
	selAnchor   = cascadia.MustCompile("a[href]")
	selImg      = cascadia.MustCompile("img")
	selScript   = cascadia.MustCompile("script[type]")
)

// sampleLimit caps the link URL samples collected for the status probe.
const sampleLimit = 10

// Extraction is the output of one pass over a rendered document.
type Extraction struct {
	// Signals is the structured signal set for rule evaluation.
	Signals models.SignalSet

	// InternalSample and ExternalSample hold deduplicated absolute link
	// URLs in document order, capped at sampleLimit, for the link probe.
	InternalSample []string
	ExternalSample []string

	// MalformedSchemaBlocks counts JSON-LD blocks that failed to parse
	// and were skipped. Non-zero means the extraction is degraded but
	// still valid.
	MalformedSchemaBlocks int
}

// Degraded reports whether any signals were skipped during extraction.
func (e *Extraction) Degraded() bool {
	return e.MalformedSchemaBlocks > 0
}

// Extract reads the structured SEO signal set out of a rendered document.
// It is a pure function over the HTML and the final URL; a parse failure
// on an individual fragment (e.g. one JSON-LD block) never aborts the
// extraction of the rest of the page.
func Extract(rawHTML, finalURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	ext := &Extraction{}
	s := &ext.Signals
	s.Meta.Hreflang = []models.HreflangEntry{}
	s.SchemaTypes = []string{}

	base, baseErr := url.Parse(finalURL)

	// Title: first title element only; empty means absent.
	if sel := doc.FindMatcher(selTitle).First(); sel.Length() > 0 {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			s.Title = &t
		}
	}

	s.Meta.Description = firstMetaContent(doc, "description")
	s.Meta.Robots = firstMetaContent(doc, "robots")

	// Canonical and hreflang live on link elements; rel is a
	// space-separated token list.
	doc.FindMatcher(selRelLink).Each(func(_ int, sel *goquery.Selection) {
		rel, _ := sel.Attr("rel")
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)

		if relContains(rel, "canonical") && s.Meta.Canonical == nil && href != "" {
			resolved := resolveURL(base, baseErr, href)
			s.Meta.Canonical = &resolved
		}

		if relContains(rel, "amphtml") && s.AMP.AMPURL == nil && href != "" {
			resolved := resolveURL(base, baseErr, href)
			s.AMP.AMPURL = &resolved
		}

		if relContains(rel, "alternate") {
			if lang, ok := sel.Attr("hreflang"); ok && lang != "" {
				entry := models.HreflangEntry{Lang: lang}
				if href != "" {
					entry.Href = resolveURL(base, baseErr, href)
				}
				// Duplicates by language are kept; flagging them is a
				// rule's job, not a filter's.
				s.Meta.Hreflang = append(s.Meta.Hreflang, entry)
			}
		}
	})

	s.Headings = extractHeadings(doc)
	extractLinks(doc, base, baseErr, ext)

	s.OpenGraph, s.TwitterCard = extractSocial(doc)
	s.Images = extractImages(doc)
	s.AMP.IsAMP = isAMPDocument(doc)

	s.SchemaTypes, ext.MalformedSchemaBlocks = collectSchemaTypes(doc)

	return ext, nil
}

// extractSocial collects open-graph and twitter-card meta properties,
// keyed by lowercased property/name. A repeated property keeps the last
// value.
func extractSocial(doc *goquery.Document) (og, tw map[string]string) {
	og = map[string]string{}
	tw = map[string]string{}
	doc.FindMatcher(selMetaProp).Each(func(_ int, sel *goquery.Selection) {
		prop, _ := sel.Attr("property")
		prop = strings.ToLower(prop)
		if strings.HasPrefix(prop, "og:") {
			content, _ := sel.Attr("content")
			og[prop] = strings.TrimSpace(content)
		}
	})
	doc.FindMatcher(selMeta).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		name = strings.ToLower(name)
		if strings.HasPrefix(name, "twitter:") {
			content, _ := sel.Attr("content")
			tw[name] = strings.TrimSpace(content)
		}
	})
	return og, tw
}

// extractImages counts img elements and those without alt text. Rendered
// DOM, so lazy-loaded images are included.
func extractImages(doc *goquery.Document) models.ImageStats {
	var stats models.ImageStats
	doc.FindMatcher(selImg).Each(func(_ int, sel *goquery.Selection) {
		stats.Total++
		if alt, ok := sel.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			stats.MissingAlt++
		}
	})
	return stats
}

// isAMPDocument reports whether the html element carries an amp (or ⚡)
// attribute.
func isAMPDocument(doc *goquery.Document) bool {
	sel := doc.Find("html")
	if sel.Length() == 0 {
		return false
	}
	for _, a := range sel.Get(0).Attr {
		switch strings.ToLower(a.Key) {
		case "amp", "⚡":
			return true
		}
	}
	return false
}

// firstMetaContent returns the content attribute of the first meta tag
// whose name matches case-insensitively, or nil if no such tag exists.
func firstMetaContent(doc *goquery.Document, name string) *string {
	var out *string
	doc.FindMatcher(selMeta).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		n, _ := sel.Attr("name")
		if !strings.EqualFold(n, name) {
			return true
		}
		content, _ := sel.Attr("content")
		content = strings.TrimSpace(content)
		out = &content
		return false
	})
	return out
}

// extractHeadings collects heading texts per level in document order.
// Empty headings are kept as empty strings.
func extractHeadings(doc *goquery.Document) models.HeadingSet {
	collect := func(tag string) []string {
		out := []string{}
		doc.Find(tag).Each(func(_ int, sel *goquery.Selection) {
			out = append(out, strings.TrimSpace(sel.Text()))
		})
		return out
	}
	return models.HeadingSet{
		H1: collect("h1"),
		H2: collect("h2"),
		H3: collect("h3"),
		H4: collect("h4"),
		H5: collect("h5"),
		H6: collect("h6"),
	}
}

// extractLinks classifies every anchor as internal or external by
// registrable domain, and counts nofollow rel tokens. A link counts as
// both external and nofollow when both apply.
func extractLinks(doc *goquery.Document, base *url.URL, baseErr error, ext *Extraction) {
	baseDomain := ""
	if baseErr == nil {
		baseDomain = registrableDomain(base.Hostname())
	}

	seenInternal := make(map[string]struct{})
	seenExternal := make(map[string]struct{})

	doc.FindMatcher(selAnchor).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		var resolved *url.URL
		var err error
		if baseErr == nil {
			resolved, err = base.Parse(href)
		} else {
			resolved, err = url.Parse(href)
		}
		if err != nil {
			return
		}
		// Skip fragments, javascript:, mailto:, tel: etc.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		internal := resolved.Hostname() == "" ||
			(baseDomain != "" && registrableDomain(resolved.Hostname()) == baseDomain)

		abs := resolved.String()
		if internal {
			ext.Signals.Links.Internal++
			if _, ok := seenInternal[abs]; !ok && len(ext.InternalSample) < sampleLimit {
				seenInternal[abs] = struct{}{}
				ext.InternalSample = append(ext.InternalSample, abs)
			}
		} else {
			ext.Signals.Links.External++
			if _, ok := seenExternal[abs]; !ok && len(ext.ExternalSample) < sampleLimit {
				seenExternal[abs] = struct{}{}
				ext.ExternalSample = append(ext.ExternalSample, abs)
			}
		}

		if rel, ok := sel.Attr("rel"); ok && relContains(rel, "nofollow") {
			ext.Signals.Links.Nofollow++
		}
	})
}

// registrableDomain reduces a hostname to its eTLD+1. Hosts without a
// public suffix (IPs, localhost, intranet names) fall back to the full
// lowercased host so same-host links still classify as internal.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// relContains reports whether a space-separated rel attribute contains the
// given token, case-insensitively.
func relContains(rel, token string) bool {
	for _, t := range strings.Fields(rel) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

// resolveURL resolves href against the document base, falling back to the
// raw value when the base is unusable.
func resolveURL(base *url.URL, baseErr error, href string) string {
	if baseErr != nil {
		return href
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}
