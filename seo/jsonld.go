package seo

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// collectSchemaTypes gathers the set of JSON-LD @type local names declared
// on the page. Each script block is parsed independently; a malformed
// block is counted and skipped without affecting the others. The result
// is deduplicated and sorted for stable output.
func collectSchemaTypes(doc *goquery.Document) ([]string, int) {
	seen := make(map[string]struct{})
	malformed := 0

	doc.FindMatcher(selScript).Each(func(_ int, sel *goquery.Selection) {
		typ, _ := sel.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "ld+json") {
			return
		}

		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			malformed++
			return
		}

		for _, node := range schemaNodes(payload) {
			for _, t := range nodeTypes(node) {
				if name := typeLocalName(t); name != "" {
					seen[name] = struct{}{}
				}
			}
		}
	})

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, malformed
}

// schemaNodes flattens a JSON-LD payload into the object nodes that may
// carry @type: a single object, a top-level array of objects, or the
// contents of an @graph array.
func schemaNodes(payload any) []map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			nodes := make([]map[string]any, 0, len(graph))
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok {
					nodes = append(nodes, m)
				}
			}
			return nodes
		}
		return []map[string]any{v}
	case []any:
		nodes := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				nodes = append(nodes, m)
			}
		}
		return nodes
	}
	return nil
}

// nodeTypes reads @type, which may be a string or an array of strings.
func nodeTypes(node map[string]any) []string {
	switch t := node["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// typeLocalName strips a full schema IRI down to its local name, e.g.
// "https://schema.org/Product" and "schema:Product#Product" both reduce
// to "Product".
func typeLocalName(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.LastIndex(t, "#"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSuffix(t, "/")
	if i := strings.LastIndex(t, "/"); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}
