package models

// SignalSet is the structured SEO signal set read from a rendered DOM.
// It is produced once per successful fetch and never mutated afterwards.
type SignalSet struct {
	// Title is the text of the first title element, or nil when the
	// element is absent or empty.
	Title *string `json:"title"`

	// Meta holds description/robots/canonical/hreflang signals.
	Meta MetaSignals `json:"meta"`

	// Headings holds all heading texts grouped by level, in document order.
	Headings HeadingSet `json:"headings"`

	// Links holds internal/external/nofollow anchor counts.
	Links LinkCounts `json:"links"`

	// OpenGraph and TwitterCard hold the social-preview meta properties,
	// keyed by lowercased property/name. A repeated property keeps the
	// last value. Never nil.
	OpenGraph   map[string]string `json:"open_graph"`
	TwitterCard map[string]string `json:"twitter_card"`

	// Images counts img elements and those lacking alt text.
	Images ImageStats `json:"images"`

	// AMP reports the amphtml alternate and whether the document itself
	// is an AMP page.
	AMP AMPSignals `json:"amp"`

	// SchemaTypes is the deduplicated set of JSON-LD @type local names.
	SchemaTypes []string `json:"schema_types"`
}

// ImageStats is the alt-text coverage of the rendered document's images.
type ImageStats struct {
	Total      int `json:"total"`
	MissingAlt int `json:"missing_alt"`
}

// AMPSignals marks AMP documents and their amphtml alternates.
type AMPSignals struct {
	IsAMP  bool    `json:"is_amp"`
	AMPURL *string `json:"amp_url"`
}

// MetaSignals groups the meta-tag and link-element signals.
type MetaSignals struct {
	Description *string         `json:"description"`
	Robots      *string         `json:"robots"`
	Canonical   *string         `json:"canonical"`
	Hreflang    []HreflangEntry `json:"hreflang"`
}

// HreflangEntry is one rel=alternate hreflang declaration, in document
// order. Duplicates by language are kept; flagging them is a rule's job.
type HreflangEntry struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// HeadingSet holds heading texts per level. Empty headings are kept as
// empty strings; their presence is itself a signal.
type HeadingSet struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
	H4 []string `json:"h4"`
	H5 []string `json:"h5"`
	H6 []string `json:"h6"`
}

// LinkCounts classifies anchors by target host and rel attribute.
// An anchor can count as both external and nofollow.
type LinkCounts struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	Nofollow int `json:"nofollow"`
}
