// Package htmlparser turns a crawled HTML document into heading-scoped
// docparse.Sections, stripping navigation chrome and lifting
// <pre><code> blocks out as code Blocks. Grounded on the teacher's
// section/code-block separation in internal/indexer/chunker.go but
// walks a real DOM via golang.org/x/net/html, since no dedicated
// HTML-parsing domain library appears anywhere in the example pack.
package htmlparser

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/docparse"
)

var chromeTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "script": true,
	"style": true, "aside": true, "noscript": true,
}

var headingLevel = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

// Parse walks the document body and emits one Section per heading.
func Parse(htmlContent string) ([]docparse.Section, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	p := &parser{headingStack: []string{}}
	p.walk(doc)
	p.flushParagraph()
	p.flush()
	return p.sections, nil
}

type parser struct {
	sections     []docparse.Section
	headingStack []string
	current      docparse.Section
	hasContent   bool
	paraBuf      []string
}

func (p *parser) flush() {
	// A section with no blocks still carries a heading, so it
	// survives as a heading-section chunk downstream.
	if p.hasContent || len(p.headingStack) > 0 {
		p.sections = append(p.sections, p.current)
	}
	p.current = docparse.Section{HeadingPath: append([]string{}, p.headingStack...)}
	p.hasContent = false
}

func (p *parser) flushParagraph() {
	text := strings.TrimSpace(strings.Join(p.paraBuf, " "))
	if text != "" {
		p.current.Blocks = append(p.current.Blocks, docparse.Block{Type: chunk.TypeProse, Text: text})
		p.hasContent = true
	}
	p.paraBuf = nil
}

func (p *parser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if chromeTags[n.Data] {
			return
		}
		if level, ok := headingLevel[n.Data]; ok {
			p.flushParagraph()
			p.flush()
			title := strings.TrimSpace(textContent(n))
			if level <= len(p.headingStack) {
				p.headingStack = p.headingStack[:level-1]
			}
			p.headingStack = append(p.headingStack, title)
			p.current.HeadingPath = append([]string{}, p.headingStack...)
			return
		}
		if n.Data == "pre" {
			p.flushParagraph()
			code, lang := extractCode(n)
			if strings.TrimSpace(code) != "" {
				p.current.Blocks = append(p.current.Blocks, docparse.Block{
					Type: chunk.TypeCode, Text: code, Language: lang,
				})
				p.hasContent = true
			}
			return
		}
		if n.Data == "p" || n.Data == "li" || n.Data == "td" {
			p.flushParagraph()
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			p.paraBuf = append(p.paraBuf, text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}

	if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "li" || n.Data == "div" || n.Data == "td") {
		p.flushParagraph()
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// extractCode pulls text out of <pre><code class="language-xxx">...
func extractCode(pre *html.Node) (code string, language string) {
	var codeNode *html.Node
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			codeNode = c
			break
		}
	}
	if codeNode == nil {
		codeNode = pre
	}
	for _, attr := range codeNode.Attr {
		if attr.Key == "class" {
			for _, cls := range strings.Fields(attr.Val) {
				if strings.HasPrefix(cls, "language-") {
					language = strings.TrimPrefix(cls, "language-")
				}
			}
		}
	}
	return textContent(codeNode), language
}
