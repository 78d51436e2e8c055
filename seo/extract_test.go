package seo

import (
	"reflect"
	"testing"
)

const fullPage = `<!DOCTYPE html>
<html>
<head>
	<title>  Acme Widgets — Home  </title>
	<title>Second Title Ignored</title>
	<meta name="Description" content=" Quality widgets since 1999. ">
	<meta name="description" content="second description ignored">
	<meta name="ROBOTS" content="index, follow">
	<link rel="canonical" href="/home">
	<link rel="alternate" hreflang="en" href="https://example.com/en">
	<link rel="alternate" hreflang="de" href="/de">
	<link rel="alternate" hreflang="fr">
	<link rel="stylesheet" href="/style.css">
	<link rel="amphtml" href="/amp">
	<meta property="og:title" content=" Acme Widgets ">
	<meta property="OG:title" content="Acme Widgets Updated">
	<meta property="og:image" content="https://example.com/og.png">
	<meta name="Twitter:card" content="summary">
</head>
<body>
	<h1>Welcome</h1>
	<h2>Products</h2>
	<h2></h2>
	<h3>Widgets</h3>
	<a href="/about">About</a>
	<a href="https://blog.example.com/post">Blog</a>
	<a href="https://other.com" rel="NoFollow external">Partner</a>
	<a href="mailto:sales@example.com">Mail</a>
	<a href="javascript:void(0)">Menu</a>
	<a href="#section">Jump</a>
	<img src="/hero.png" alt="Hero widget">
	<img src="/plain.png">
	<img src="/decor.png" alt="  ">
</body>
</html>`

func TestExtract_FullPage(t *testing.T) {
	ext, err := Extract(fullPage, "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	s := &ext.Signals

	if s.Title == nil || *s.Title != "Acme Widgets — Home" {
		t.Errorf("title = %v, want %q", s.Title, "Acme Widgets — Home")
	}
	if s.Meta.Description == nil || *s.Meta.Description != "Quality widgets since 1999." {
		t.Errorf("description = %v, want first matching meta", s.Meta.Description)
	}
	if s.Meta.Robots == nil || *s.Meta.Robots != "index, follow" {
		t.Errorf("robots = %v, want %q", s.Meta.Robots, "index, follow")
	}
	if s.Meta.Canonical == nil || *s.Meta.Canonical != "https://example.com/home" {
		t.Errorf("canonical = %v, want resolved /home", s.Meta.Canonical)
	}

	if len(s.Meta.Hreflang) != 3 {
		t.Fatalf("hreflang entries = %d, want 3", len(s.Meta.Hreflang))
	}
	if s.Meta.Hreflang[0].Lang != "en" || s.Meta.Hreflang[0].Href != "https://example.com/en" {
		t.Errorf("hreflang[0] = %+v", s.Meta.Hreflang[0])
	}
	if s.Meta.Hreflang[1].Href != "https://example.com/de" {
		t.Errorf("hreflang[1].Href = %q, want resolved /de", s.Meta.Hreflang[1].Href)
	}
	if s.Meta.Hreflang[2].Lang != "fr" || s.Meta.Hreflang[2].Href != "" {
		t.Errorf("hreflang[2] = %+v, want fr with empty href", s.Meta.Hreflang[2])
	}

	if !reflect.DeepEqual(s.Headings.H1, []string{"Welcome"}) {
		t.Errorf("h1 = %v", s.Headings.H1)
	}
	if !reflect.DeepEqual(s.Headings.H2, []string{"Products", ""}) {
		t.Errorf("h2 = %v, empty headings must be kept", s.Headings.H2)
	}
	if !reflect.DeepEqual(s.Headings.H3, []string{"Widgets"}) {
		t.Errorf("h3 = %v", s.Headings.H3)
	}
	if len(s.Headings.H4) != 0 || len(s.Headings.H5) != 0 || len(s.Headings.H6) != 0 {
		t.Error("h4-h6 should be empty")
	}
}

func TestExtract_LinkClassification(t *testing.T) {
	ext, err := Extract(fullPage, "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	links := ext.Signals.Links

	// /about and blog.example.com share the registrable domain; other.com
	// does not; mailto/javascript/fragment-only are skipped.
	if links.Internal != 2 {
		t.Errorf("internal = %d, want 2", links.Internal)
	}
	if links.External != 1 {
		t.Errorf("external = %d, want 1", links.External)
	}
	if links.Nofollow != 1 {
		t.Errorf("nofollow = %d, want 1", links.Nofollow)
	}

	if len(ext.ExternalSample) != 1 || ext.ExternalSample[0] != "https://other.com" {
		t.Errorf("external sample = %v", ext.ExternalSample)
	}
	if len(ext.InternalSample) != 2 {
		t.Errorf("internal sample = %v, want 2 entries", ext.InternalSample)
	}
}

func TestExtract_SocialImagesAMP(t *testing.T) {
	ext, err := Extract(fullPage, "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	s := &ext.Signals

	if got := s.OpenGraph["og:title"]; got != "Acme Widgets Updated" {
		t.Errorf("og:title = %q, want the last value for a repeated property", got)
	}
	if got := s.OpenGraph["og:image"]; got != "https://example.com/og.png" {
		t.Errorf("og:image = %q", got)
	}
	if got := s.TwitterCard["twitter:card"]; got != "summary" {
		t.Errorf("twitter:card = %q, want case-insensitive name match", got)
	}

	if s.Images.Total != 3 {
		t.Errorf("images total = %d, want 3", s.Images.Total)
	}
	if s.Images.MissingAlt != 2 {
		t.Errorf("images missing alt = %d, want 2 (absent and blank alt)", s.Images.MissingAlt)
	}

	if s.AMP.IsAMP {
		t.Error("regular document must not report as AMP")
	}
	if s.AMP.AMPURL == nil || *s.AMP.AMPURL != "https://example.com/amp" {
		t.Errorf("amp url = %v, want resolved /amp", s.AMP.AMPURL)
	}
}

func TestIsAMPDocument(t *testing.T) {
	for _, page := range []string{
		`<html amp><head></head><body></body></html>`,
		`<html ⚡><head></head><body></body></html>`,
	} {
		ext, err := Extract(page, "https://example.com/")
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if !ext.Signals.AMP.IsAMP {
			t.Errorf("document %q must report as AMP", page[:12])
		}
	}
}

func TestExtract_EmptyAndMissingSignals(t *testing.T) {
	ext, err := Extract("<html><head><title>  </title></head><body><p>hi</p></body></html>", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	s := &ext.Signals

	if s.Title != nil {
		t.Errorf("whitespace-only title should be nil, got %q", *s.Title)
	}
	if s.Meta.Description != nil {
		t.Error("missing description should be nil")
	}
	if s.Meta.Canonical != nil {
		t.Error("missing canonical should be nil")
	}
	if s.SchemaTypes == nil || len(s.SchemaTypes) != 0 {
		t.Errorf("schema types should be an empty non-nil slice, got %v", s.SchemaTypes)
	}
	if s.Meta.Hreflang == nil || len(s.Meta.Hreflang) != 0 {
		t.Errorf("hreflang should be an empty non-nil slice, got %v", s.Meta.Hreflang)
	}
	if s.OpenGraph == nil || len(s.OpenGraph) != 0 {
		t.Errorf("open graph should be an empty non-nil map, got %v", s.OpenGraph)
	}
	if s.TwitterCard == nil || len(s.TwitterCard) != 0 {
		t.Errorf("twitter card should be an empty non-nil map, got %v", s.TwitterCard)
	}
	if s.Images.Total != 0 || s.Images.MissingAlt != 0 {
		t.Errorf("images = %+v, want zero counts", s.Images)
	}
	if s.AMP.IsAMP || s.AMP.AMPURL != nil {
		t.Errorf("amp = %+v, want empty", s.AMP)
	}
}

func TestExtract_JSONLD(t *testing.T) {
	page := `<html><head>
		<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Widget"}</script>
		<script type="application/ld+json">{"@graph":[{"@type":"Organization"},{"@type":"https://schema.org/WebSite"}]}</script>
		<script type="application/ld+json">{not valid json</script>
		<script type="APPLICATION/LD+JSON">[{"@type":["Article","BlogPosting"]}]</script>
		<script type="text/javascript">var x = 1;</script>
	</head><body></body></html>`

	ext, err := Extract(page, "https://example.com/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []string{"Article", "BlogPosting", "Organization", "Product", "WebSite"}
	if !reflect.DeepEqual(ext.Signals.SchemaTypes, want) {
		t.Errorf("schema types = %v, want %v", ext.Signals.SchemaTypes, want)
	}
	if ext.MalformedSchemaBlocks != 1 {
		t.Errorf("malformed blocks = %d, want 1", ext.MalformedSchemaBlocks)
	}
	if !ext.Degraded() {
		t.Error("extraction with a malformed block should report degraded")
	}
}

func TestExtract_JSONLDAllMalformed(t *testing.T) {
	page := `<html><head><script type="application/ld+json">{{{</script></head><body></body></html>`
	ext, err := Extract(page, "https://example.com/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(ext.Signals.SchemaTypes) != 0 || ext.MalformedSchemaBlocks != 1 {
		t.Errorf("got types=%v malformed=%d", ext.Signals.SchemaTypes, ext.MalformedSchemaBlocks)
	}
}

func TestTypeLocalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Product", "Product"},
		{"https://schema.org/Product", "Product"},
		{"https://schema.org/Product/", "Product"},
		{"schema:Thing#Product", "Product"},
		{"  Article  ", "Article"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := typeLocalName(tt.in); got != tt.want {
			t.Errorf("typeLocalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"blog.example.com", "example.com"},
		{"a.b.example.co.uk", "example.co.uk"},
		{"localhost", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
		{"Example.COM", "example.com"},
	}
	for _, tt := range tests {
		if got := registrableDomain(tt.host); got != tt.want {
			t.Errorf("registrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestRelContains(t *testing.T) {
	if !relContains("NoFollow external", "nofollow") {
		t.Error("token match should be case-insensitive")
	}
	if relContains("nofollowed", "nofollow") {
		t.Error("partial token must not match")
	}
	if relContains("", "nofollow") {
		t.Error("empty rel must not match")
	}
}
