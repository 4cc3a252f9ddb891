package bgg

import (
	"net/http"
	"strconv"
	"strings"
)

// Longest slice of an unparsable body carried into the error detail.
const parseExcerptLimit = 500

// ParseCollection normalizes a 200-status collection body. It detects the
// upstream "collection is being generated" message document (which appears
// under HTTP 200, independent of the 202 path) and otherwise flattens the
// item list, tolerating every shape the upstream emits: missing items,
// a single item, repeated items, and names as text, attribute or a list of
// localized alternatives.
func ParseCollection(raw string) (*Collection, error) {
	root, err := parseTree([]byte(raw))
	if err != nil {
		return nil, newError(http.StatusBadGateway,
			"could not parse BGG XML response: %v. Received response: %s", err, excerpt(raw, parseExcerptLimit))
	}

	if root.name == "message" {
		col := &Collection{Status: StatusProcessing}
		if root.text != "" {
			msg := root.text
			col.Message = &msg
		}
		return col, nil
	}

	var items []*node
	if root.name == "items" {
		items = root.childrenNamed("item")
	}

	col := &Collection{Status: StatusOK, Items: make([]Game, 0, len(items))}
	for _, item := range items {
		col.Items = append(col.Items, Game{
			ObjectID: item.attr("objectid"),
			Name:     itemName(item),
		})
	}
	return col, nil
}

// itemName resolves the display name of a collection item. With multiple
// name elements (localized/alternate names) the primary one carries
// sortindex 1; without a primary the first element wins. The chosen
// element's text is preferred over its value attribute; neither present
// means the name stays unresolved.
func itemName(item *node) *string {
	names := item.childrenNamed("name")
	if len(names) == 0 {
		return nil
	}
	chosen := names[0]
	if len(names) > 1 {
		for _, n := range names {
			if isPrimarySortIndex(n.attrs["sortindex"]) {
				chosen = n
				break
			}
		}
	}
	if chosen.text != "" {
		t := chosen.text
		return &t
	}
	return chosen.attr("value")
}

// isPrimarySortIndex accepts both forms seen upstream: the literal string
// "1" and an integer rendering of 1.
func isPrimarySortIndex(v string) bool {
	v = strings.TrimSpace(v)
	if v == "1" {
		return true
	}
	i, err := strconv.Atoi(v)
	return err == nil && i == 1
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
