// Package element resolves element references against an HTML template.
//
// A Document indexes the elements of a parsed template by their "data-id"
// attribute, falling back to "id". It implements the element scope used by
// deserializers; Elements accept properties and event listeners so the
// "values" block and the listeners unit can target them.
package element

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Attributes used to look elements up, in priority order.
const (
	DataIDAttr = "data-id"
	IDAttr     = "id"
)

// Listener is one registered event listener.
type Listener struct {
	Type     string
	Listener any
	Capture  bool
}

// Element is an element of a Document.
type Element struct {
	node      *html.Node
	props     map[string]any
	listeners []Listener
}

// Tag returns the element name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the value of an attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the concatenated text of the element's subtree.
func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

// SetProperty implements object.PropertySetter.
func (e *Element) SetProperty(key string, value any) error {
	if e.props == nil {
		e.props = make(map[string]any)
	}
	e.props[key] = value
	return nil
}

// GetProperty implements object.PropertyGetter. Properties shadow
// attributes.
func (e *Element) GetProperty(key string) (any, bool) {
	if v, ok := e.props[key]; ok {
		return v, true
	}
	if v, ok := e.Attr(key); ok {
		return v, true
	}
	return nil, false
}

// PropertyNames returns the sorted names of the properties set on e.
func (e *Element) PropertyNames() []string {
	names := make([]string, 0, len(e.props))
	for k := range e.props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AddEventListener implements units.EventTarget.
func (e *Element) AddEventListener(eventType string, listener any, capture bool) error {
	e.listeners = append(e.listeners, Listener{Type: eventType, Listener: listener, Capture: capture})
	return nil
}

// Listeners returns the registered listeners in registration order.
func (e *Element) Listeners() []Listener {
	return append([]Listener(nil), e.listeners...)
}

func (e *Element) String() string {
	if id, ok := e.Attr(DataIDAttr); ok {
		return fmt.Sprintf("<%s %s=%q>", e.Tag(), DataIDAttr, id)
	}
	if id, ok := e.Attr(IDAttr); ok {
		return fmt.Sprintf("<%s %s=%q>", e.Tag(), IDAttr, id)
	}
	return "<" + e.Tag() + ">"
}

// Document is a parsed HTML template.
type Document struct {
	root   *html.Node
	byData map[string]*Element
	byID   map[string]*Element
}

// Parse reads an HTML template.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	d := &Document{
		root:   root,
		byData: make(map[string]*Element),
		byID:   make(map[string]*Element),
	}
	d.index(root)
	return d, nil
}

// ParseString reads an HTML template from s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// index records every element under its ids. The first element in
// document order wins.
func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode {
		el := &Element{node: n}
		if id, ok := el.Attr(DataIDAttr); ok {
			if _, taken := d.byData[id]; !taken {
				d.byData[id] = el
			}
		}
		if id, ok := el.Attr(IDAttr); ok {
			if _, taken := d.byID[id]; !taken {
				d.byID[id] = el
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

// ElementByID returns the element whose data-id is id, or else the
// element whose id is id.
func (d *Document) ElementByID(id string) (any, bool) {
	if el, ok := d.Element(id); ok {
		return el, true
	}
	return nil, false
}

// Element is the typed form of ElementByID.
func (d *Document) Element(id string) (*Element, bool) {
	if el, ok := d.byData[id]; ok {
		return el, true
	}
	el, ok := d.byID[id]
	return el, ok
}

// IDs returns the sorted ids that resolve to an element.
func (d *Document) IDs() []string {
	seen := make(map[string]bool, len(d.byData)+len(d.byID))
	for id := range d.byData {
		seen[id] = true
	}
	for id := range d.byID {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
