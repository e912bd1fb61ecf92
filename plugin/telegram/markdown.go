package telegram

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Escape renders model output markdown as Telegram MarkdownV2. The text is
// parsed and re-emitted rather than escaped in place: MarkdownV2 rejects any
// unescaped special character outside entities, so naive escaping would
// either break formatting or get the whole message rejected with a 400.
func Escape(src string) string {
	root := goldmark.New().Parser().Parse(text.NewReader([]byte(src)))
	w := &markdownWriter{src: []byte(src)}
	w.blocks(root)
	return strings.TrimRight(w.out.String(), "\n")
}

// escapeReplacer escapes every character MarkdownV2 reserves outside code.
var escapeReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// codeReplacer escapes the two characters reserved inside code entities.
var codeReplacer = strings.NewReplacer("\\", "\\\\", "`", "\\`")

// urlReplacer escapes the characters reserved inside link destinations.
var urlReplacer = strings.NewReplacer("\\", "\\\\", ")", "\\)")

type markdownWriter struct {
	src []byte
	out strings.Builder
}

func (w *markdownWriter) blocks(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, "")
	}
}

func (w *markdownWriter) block(n ast.Node, prefix string) {
	switch b := n.(type) {
	case *ast.Heading:
		w.out.WriteString(prefix + "*")
		w.inlineChildren(b)
		w.out.WriteString("*\n\n")

	case *ast.Paragraph, *ast.TextBlock:
		w.out.WriteString(prefix)
		w.inlineChildren(n)
		w.out.WriteString("\n\n")

	case *ast.FencedCodeBlock:
		w.out.WriteString("```")
		if lang := b.Language(w.src); lang != nil {
			w.out.Write(lang)
		}
		w.out.WriteString("\n")
		w.rawLines(b)
		w.out.WriteString("```\n\n")

	case *ast.CodeBlock:
		w.out.WriteString("```\n")
		w.rawLines(b)
		w.out.WriteString("```\n\n")

	case *ast.List:
		index := b.Start
		for item := b.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if b.IsOrdered() {
				marker = fmt.Sprintf("%d\\. ", index)
				index++
			}
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				w.block(c, prefix+marker)
				marker = "  "
			}
		}
		w.out.WriteString("\n")

	case *ast.Blockquote:
		for c := b.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, prefix+">")
		}

	case *ast.ThematicBreak:
		w.out.WriteString("\\-\\-\\-\n\n")

	case *ast.HTMLBlock:
		w.out.WriteString(prefix)
		for i := 0; i < b.Lines().Len(); i++ {
			seg := b.Lines().At(i)
			w.out.WriteString(escapeReplacer.Replace(string(seg.Value(w.src))))
		}
		w.out.WriteString("\n")

	default:
		w.inlineChildren(n)
		w.out.WriteString("\n")
	}
}

func (w *markdownWriter) rawLines(n ast.Node) {
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		w.out.WriteString(codeReplacer.Replace(string(seg.Value(w.src))))
	}
}

func (w *markdownWriter) inlineChildren(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.inline(n)
	}
}

func (w *markdownWriter) inline(n ast.Node) {
	switch i := n.(type) {
	case *ast.Text:
		w.out.WriteString(escapeReplacer.Replace(string(i.Segment.Value(w.src))))
		if i.HardLineBreak() || i.SoftLineBreak() {
			w.out.WriteString("\n")
		}

	case *ast.String:
		w.out.WriteString(escapeReplacer.Replace(string(i.Value)))

	case *ast.Emphasis:
		marker := "_"
		if i.Level >= 2 {
			marker = "*"
		}
		w.out.WriteString(marker)
		w.inlineChildren(i)
		w.out.WriteString(marker)

	case *ast.CodeSpan:
		w.out.WriteString("`")
		for c := i.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				w.out.WriteString(codeReplacer.Replace(string(t.Segment.Value(w.src))))
			}
		}
		w.out.WriteString("`")

	case *ast.Link:
		w.out.WriteString("[")
		w.inlineChildren(i)
		w.out.WriteString("](")
		w.out.WriteString(urlReplacer.Replace(string(i.Destination)))
		w.out.WriteString(")")

	case *ast.AutoLink:
		w.out.WriteString(escapeReplacer.Replace(string(i.URL(w.src))))

	case *ast.Image:
		w.out.WriteString("[")
		w.inlineChildren(i)
		w.out.WriteString("](")
		w.out.WriteString(urlReplacer.Replace(string(i.Destination)))
		w.out.WriteString(")")

	case *ast.RawHTML:
		for s := 0; s < i.Segments.Len(); s++ {
			seg := i.Segments.At(s)
			w.out.WriteString(escapeReplacer.Replace(string(seg.Value(w.src))))
		}

	default:
		w.inlineChildren(n)
	}
}
