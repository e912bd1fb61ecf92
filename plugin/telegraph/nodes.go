package telegraph

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// NodeElement is one element of the telegra.ph page DOM. Text nodes are
// plain strings, so children are held as any.
type NodeElement struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

// MarkdownToNodes converts markdown into the telegra.ph DOM. The page format
// supports no headings above h3, so h1/h2 map down and deeper levels become
// bold paragraphs.
func MarkdownToNodes(markdown string) []any {
	src := []byte(markdown)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	conv := &nodeConverter{src: src}
	var nodes []any
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if node := conv.block(n); node != nil {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		nodes = append(nodes, NodeElement{Tag: "p", Children: []any{""}})
	}
	return nodes
}

type nodeConverter struct {
	src []byte
}

func (c *nodeConverter) block(n ast.Node) any {
	switch b := n.(type) {
	case *ast.Heading:
		switch b.Level {
		case 1:
			return NodeElement{Tag: "h3", Children: c.inlines(b)}
		case 2:
			return NodeElement{Tag: "h4", Children: c.inlines(b)}
		default:
			return NodeElement{Tag: "p", Children: []any{
				NodeElement{Tag: "strong", Children: c.inlines(b)},
			}}
		}

	case *ast.Paragraph, *ast.TextBlock:
		return NodeElement{Tag: "p", Children: c.inlines(n)}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return NodeElement{Tag: "pre", Children: []any{c.rawLines(n)}}

	case *ast.List:
		tag := "ul"
		if b.IsOrdered() {
			tag = "ol"
		}
		var items []any
		for item := b.FirstChild(); item != nil; item = item.NextSibling() {
			var children []any
			for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
				if node := c.block(ic); node != nil {
					children = append(children, node)
				}
			}
			items = append(items, NodeElement{Tag: "li", Children: children})
		}
		return NodeElement{Tag: tag, Children: items}

	case *ast.Blockquote:
		var children []any
		for bc := b.FirstChild(); bc != nil; bc = bc.NextSibling() {
			if node := c.block(bc); node != nil {
				children = append(children, node)
			}
		}
		return NodeElement{Tag: "blockquote", Children: children}

	case *ast.ThematicBreak:
		return NodeElement{Tag: "hr"}

	case *ast.HTMLBlock:
		return NodeElement{Tag: "p", Children: []any{c.rawLines(b)}}

	default:
		if children := c.inlines(n); len(children) > 0 {
			return NodeElement{Tag: "p", Children: children}
		}
		return nil
	}
}

func (c *nodeConverter) rawLines(n ast.Node) string {
	var out []byte
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		out = append(out, seg.Value(c.src)...)
	}
	return string(out)
}

func (c *nodeConverter) inlines(parent ast.Node) []any {
	var nodes []any
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if node := c.inline(n); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func (c *nodeConverter) inline(n ast.Node) any {
	switch i := n.(type) {
	case *ast.Text:
		value := string(i.Segment.Value(c.src))
		if i.SoftLineBreak() || i.HardLineBreak() {
			value += "\n"
		}
		return value

	case *ast.String:
		return string(i.Value)

	case *ast.Emphasis:
		tag := "em"
		if i.Level >= 2 {
			tag = "strong"
		}
		return NodeElement{Tag: tag, Children: c.inlines(i)}

	case *ast.CodeSpan:
		var value string
		for cc := i.FirstChild(); cc != nil; cc = cc.NextSibling() {
			if t, ok := cc.(*ast.Text); ok {
				value += string(t.Segment.Value(c.src))
			}
		}
		return NodeElement{Tag: "code", Children: []any{value}}

	case *ast.Link:
		return NodeElement{
			Tag:      "a",
			Attrs:    map[string]string{"href": string(i.Destination)},
			Children: c.inlines(i),
		}

	case *ast.AutoLink:
		target := string(i.URL(c.src))
		return NodeElement{
			Tag:      "a",
			Attrs:    map[string]string{"href": target},
			Children: []any{target},
		}

	case *ast.Image:
		return NodeElement{
			Tag:   "img",
			Attrs: map[string]string{"src": string(i.Destination)},
		}

	case *ast.RawHTML:
		var value string
		for s := 0; s < i.Segments.Len(); s++ {
			seg := i.Segments.At(s)
			value += string(seg.Value(c.src))
		}
		return value

	default:
		if children := c.inlines(n); len(children) > 0 {
			return NodeElement{Tag: "p", Children: children}
		}
		return nil
	}
}
