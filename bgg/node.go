package bgg

import (
	"encoding/xml"
	"strings"
)

// node is a generic XML element: attributes, children in document order and
// accumulated character data. The upstream payload varies too much in shape
// for fixed structs (single vs repeated elements, text vs attribute values),
// so the normalizer walks this tree instead.
type node struct {
	name     string
	attrs    map[string]string
	children []*node
	text     string
}

func (n *node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.name = start.Name.Local
	n.attrs = make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		n.attrs[a.Name.Local] = a.Value
	}
	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &node{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.children = append(n.children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n.text = strings.TrimSpace(text.String())
			return nil
		}
	}
}

// attr returns the named attribute, or nil when absent.
func (n *node) attr(name string) *string {
	if v, ok := n.attrs[name]; ok {
		return &v
	}
	return nil
}

// childrenNamed returns all direct children with the given element name,
// preserving document order.
func (n *node) childrenNamed(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func parseTree(raw []byte) (*node, error) {
	root := &node{}
	if err := xml.Unmarshal(raw, root); err != nil {
		return nil, err
	}
	return root, nil
}
