// Package tei provides the element tree over CBETA TEI-P5 source files.
//
// Parsing is recovering: sources from the legacy Bookcase distribution carry
// the occasional unescaped ampersand or undefined entity, and the decoder is
// run in non-strict mode so those documents still yield a usable tree. Only
// input the decoder cannot resync on is reported as a parse failure.
//
// Security note: entity expansion is disabled, so external-entity tricks in a
// hostile source file cannot reach the filesystem.
package tei

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Namespace URIs used by CBETA TEI-P5 sources.
const (
	// TEINamespace is the TEI-P5 default namespace.
	TEINamespace = "http://www.tei-c.org/ns/1.0"
	// CBNamespace is the CBETA extension namespace, conventionally prefixed "cb".
	CBNamespace = "http://www.cbeta.org/ns/1.0"
)

// Document represents a parsed TEI document.
type Document struct {
	root *xmlquery.Node
}

// Node represents a node of the element tree. Element and text nodes are the
// only kinds the renderer sees; comments and processing instructions are
// filtered out by Content.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	opts := xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict: false,
			Entity: map[string]string{},
		},
	}
	root, err := xmlquery.ParseWithOptions(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseFile reads and parses a source file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// Body returns the text body element of the document.
func (d *Document) Body() (*Node, error) {
	body, err := d.XPathFirst("//body")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("document has no body element")
	}
	return body, nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if d.root == nil {
		return nil, nil
	}
	return query(d.root, expr)
}

// XPathFirst executes an XPath query and returns the first matching node,
// or nil when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if d.root == nil {
		return nil, nil
	}
	return queryFirst(d.root, expr)
}

// XPath executes an XPath query relative to the node.
func (n *Node) XPath(expr string) ([]*Node, error) {
	if n == nil || n.node == nil {
		return nil, nil
	}
	return query(n.node, expr)
}

// XPathFirst executes an XPath query relative to the node and returns the
// first match, or nil when nothing matches.
func (n *Node) XPathFirst(expr string) (*Node, error) {
	if n == nil || n.node == nil {
		return nil, nil
	}
	return queryFirst(n.node, expr)
}

func query(root *xmlquery.Node, expr string) ([]*Node, error) {
	// Compile the expression to check for errors
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

func queryFirst(root *xmlquery.Node, expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	node, err := xmlquery.Query(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the dispatch name of an element: the local name, prefixed
// with "cb:" when the element lives in the CBETA extension namespace.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	if n.node.NamespaceURI == CBNamespace {
		return "cb:" + n.node.Data
	}
	return n.node.Data
}

// Local returns the local element name without any namespace prefix.
func (n *Node) Local() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool {
	return n != nil && n.node != nil && n.node.Type == xmlquery.ElementNode
}

// IsText reports whether the node is character data.
func (n *Node) IsText() bool {
	if n == nil || n.node == nil {
		return false
	}
	return n.node.Type == xmlquery.TextNode || n.node.Type == xmlquery.CharDataNode
}

// Text returns the raw character data of a text node, or the concatenated
// descendant text of an element.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	if n.IsText() {
		return n.node.Data
	}
	return n.node.InnerText()
}

// InnerText returns all text content of the node and its descendants.
func (n *Node) InnerText() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// CollapsedText returns the node text with every whitespace run collapsed to
// a single space and surrounding whitespace removed.
func (n *Node) CollapsedText() string {
	return CleanText(n.Text())
}

// Content returns the node's children in document order: element nodes and
// non-empty text nodes interleaved. Comments and processing instructions are
// dropped.
func (n *Node) Content() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var content []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			content = append(content, &Node{node: child})
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if child.Data != "" {
				content = append(content, &Node{node: child})
			}
		}
	}
	return content
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Child returns the first child element with the given dispatch name, or nil.
func (n *Node) Child(name string) *Node {
	for _, child := range n.Children() {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// NextElement returns the next sibling that is an element, skipping text and
// comment nodes, or nil when the node is the last element under its parent.
func (n *Node) NextElement() *Node {
	if n == nil || n.node == nil {
		return nil
	}
	for sib := n.node.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == xmlquery.ElementNode {
			return &Node{node: sib}
		}
	}
	return nil
}

// Attr returns the value of an attribute. Namespaced attributes are
// addressed with their prefix ("xml:id", "xml:lang").
func (n *Node) Attr(name string) string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// Same reports whether two handles refer to the same underlying node.
// Content and Children allocate fresh handles on every call, so handle
// equality cannot be used for identity.
func (n *Node) Same(other *Node) bool {
	if n == nil || other == nil {
		return false
	}
	return n.node == other.node
}

// Attrs returns all attributes of the node keyed by local name.
func (n *Node) Attrs() map[string]string {
	if n == nil || n.node == nil {
		return nil
	}
	attrs := make(map[string]string)
	for _, attr := range n.node.Attr {
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}

// CleanText collapses every whitespace run to a single space and trims the
// ends. Source files indent freely inside paragraph elements; rendering
// treats those runs as a single separator.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}
