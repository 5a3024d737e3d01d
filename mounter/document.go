package mounter

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const skeleton = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Charts</title></head><body></body></html>`

// Document is the in-memory page a browser tab renders for its Charts tab.
// It is not safe for concurrent use; the owning Mounter serializes access.
type Document struct {
	root *html.Node
	head *html.Node
	body *html.Node
}

// NewDocument returns an empty page.
func NewDocument() *Document {
	d, err := ParseDocument(strings.NewReader(skeleton))
	if err != nil {
		// the skeleton is constant and always parses
		panic(err)
	}
	return d
}

// ParseDocument reads a full HTML page, e.g. a host template.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse document")
	}
	d := &Document{root: root}
	d.head = d.first(func(n *html.Node) bool { return n.DataAtom == atom.Head })
	d.body = d.first(func(n *html.Node) bool { return n.DataAtom == atom.Body })
	if d.head == nil || d.body == nil {
		return nil, errors.New("document has no head or body")
	}
	return d, nil
}

func (d *Document) Head() *html.Node { return d.head }
func (d *Document) Body() *html.Node { return d.body }

// ByID returns the first element with the given id.
func (d *Document) ByID(id string) *html.Node {
	return d.first(func(n *html.Node) bool {
		v, ok := getAttr(n, "id")
		return ok && v == id
	})
}

// FindAll returns every element matching pred in document order.
func (d *Document) FindAll(pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
	})
	return out
}

func (d *Document) first(pred func(*html.Node) bool) *html.Node {
	all := d.FindAll(pred)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Render writes the page as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func walk(n *html.Node, f func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		// f may detach c
		next := c.NextSibling
		f(c)
		if c.Parent != nil {
			walk(c, f)
		}
		c = next
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func getAttr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, attr(key, val))
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}
