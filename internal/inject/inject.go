// Package inject rewrites HTML documents so they carry the live reload client.
//
// Documents are decoded with the charset detected for the file, parsed into a
// tree with golang.org/x/net/html, given a script element as the last child of
// <head>, rendered and encoded back with the same charset. Without a byte
// order mark the document's own <meta> declaration or valid UTF-8 content
// decides the charset. Working on the tree
// means text or attributes that merely look like markup are never touched.
package inject

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/files"
)

// Injector adds a fixed reload script to HTML documents.
type Injector struct {
	script string
}

// New creates an injector for script. The script is rendered once per
// server and does not change between requests.
func New(script string) *Injector {
	return &Injector{script: script}
}

// Script returns the script the injector adds.
func (i *Injector) Script() string {
	return i.script
}

// Inject returns doc with the reload script appended to its <head>. The
// result is encoded with the charset doc was read with. A nil charset means
// the caller skipped content typing and is a bug.
func (i *Injector) Inject(doc []byte, cs *files.Charset) ([]byte, error) {
	if cs == nil || cs.Encoding == nil {
		panic(srverrors.NewPreconditionError("inject: charset must be known before injection"))
	}

	enc, name := documentEncoding(doc, cs)

	decoded, err := enc.NewDecoder().Bytes(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document as %s: %w", name, err)
	}

	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	InjectNode(root, i.script)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	// Characters the target charset lacks become numeric references.
	encoder := encoding.HTMLEscapeUnsupported(enc.NewEncoder())
	out, err := encoder.Bytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode document as %s: %w", name, err)
	}

	return out, nil
}

// documentEncoding picks the charset to rewrite doc with. A byte order mark
// is authoritative. Otherwise a <meta> declaration, then valid UTF-8 content,
// then windows-1252 decide. The parser expands character references, so the
// output must use the charset the browser will read the page with.
func documentEncoding(doc []byte, cs *files.Charset) (encoding.Encoding, string) {
	if cs.Sniffed {
		return cs.Encoding, cs.Name
	}

	enc, name, _ := htmlcharset.DetermineEncoding(doc, "")
	return enc, name
}

// InjectNode appends the reload script to the <head> of an already parsed
// document, creating <head> as the first child of <html> when it is missing.
// A previously injected script is replaced so a document never carries two.
func InjectNode(doc *html.Node, script string) {
	htmlEl := findChild(doc, atom.Html)
	if htmlEl == nil {
		htmlEl = &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
		doc.AppendChild(htmlEl)
	}

	head := findChild(htmlEl, atom.Head)
	if head == nil {
		head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		htmlEl.InsertBefore(head, htmlEl.FirstChild)
	}

	removeMarked(doc)

	el := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: MarkerAttr}},
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: script})
	head.AppendChild(el)
}

func findChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}

	return nil
}

func removeMarked(doc *html.Node) {
	var marked []*html.Node
	walk(doc, func(n *html.Node) {
		if isMarked(n) {
			marked = append(marked, n)
		}
	})

	for _, n := range marked {
		n.Parent.RemoveChild(n)
	}
}

func isMarked(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Script {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == MarkerAttr {
			return true
		}
	}

	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
