// Package mdparser splits Markdown documents into heading-scoped
// sections with paragraph/code-fence blocks. Generalized from the
// teacher's internal/indexer/chunker.go (splitByHeaders/
// extractParagraphs), lifted out of the chunker so parsing (structure)
// and chunking (size budgets) are separate concerns per the expanded
// component design.
package mdparser

import (
	"regexp"
	"strings"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/docparse"
)

var (
	headerPattern    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	codeFencePattern = regexp.MustCompile("^```(\\S*)")
)

// Parse splits markdown content into Sections, one per heading,
// tracking the full heading path (e.g. ["Guides", "Authentication"])
// and separating fenced code blocks from surrounding prose.
func Parse(content string) []docparse.Section {
	lines := strings.Split(content, "\n")

	var sections []docparse.Section
	var headingStack []string
	var current docparse.Section
	hasContent := false

	flush := func() {
		// A section with no blocks still carries a heading, so it
		// survives as a heading-section chunk downstream.
		if hasContent || len(headingStack) > 0 {
			sections = append(sections, current)
		}
		current = docparse.Section{HeadingPath: append([]string{}, headingStack...)}
		hasContent = false
	}

	var paraBuf []string
	var inCode bool
	var codeLang string
	var codeBuf []string

	flushParagraph := func() {
		text := strings.TrimSpace(strings.Join(paraBuf, "\n"))
		if text != "" {
			current.Blocks = append(current.Blocks, docparse.Block{Type: chunk.TypeProse, Text: text})
			hasContent = true
		}
		paraBuf = nil
	}

	for _, line := range lines {
		if m := codeFencePattern.FindStringSubmatch(line); m != nil {
			if !inCode {
				flushParagraph()
				inCode = true
				codeLang = m[1]
				codeBuf = nil
			} else {
				current.Blocks = append(current.Blocks, docparse.Block{
					Type:     chunk.TypeCode,
					Text:     strings.Join(codeBuf, "\n"),
					Language: codeLang,
				})
				hasContent = true
				inCode = false
			}
			continue
		}
		if inCode {
			codeBuf = append(codeBuf, line)
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flushParagraph()
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if level <= len(headingStack) {
				headingStack = headingStack[:level-1]
			}
			headingStack = append(headingStack, title)
			current.HeadingPath = append([]string{}, headingStack...)
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushParagraph()
			continue
		}
		paraBuf = append(paraBuf, line)
	}
	flushParagraph()
	flush()

	return sections
}
