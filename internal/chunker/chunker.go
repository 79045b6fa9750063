// Package chunker splits docparse.Sections into size-bounded Chunks,
// generalizing the teacher's internal/indexer/chunker.go (paragraph
// packing, sentence-level fallback for oversized blocks, token
// estimation) to operate over parsed Section/Block structure instead
// of raw markdown lines, and to add the overlap the spec requires
// between adjacent chunks of the same section.
package chunker

import (
	"regexp"
	"strings"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/docparse"
)

var (
	sentencePattern = regexp.MustCompile(`[.!?]+\s+`)

	// apiReferenceHeading and exampleHeading classify a section's type
	// from its heading trail, the same heading-driven heuristic the
	// teacher's chunker uses to tell code from prose.
	apiReferenceHeading = regexp.MustCompile(`(?i)\b(api|reference)\b`)
	exampleHeading      = regexp.MustCompile(`(?i)\b(example|examples|usage)\b`)
)

// Chunker packs Section blocks into chunks of approximately TargetSize
// tokens, carrying Overlap tokens of trailing context into the next
// chunk within the same section.
type Chunker struct {
	TargetSize int
	Overlap    int
}

// New builds a Chunker with the given token budget and overlap.
func New(targetSize, overlap int) *Chunker {
	return &Chunker{TargetSize: targetSize, Overlap: overlap}
}

// draft is an in-progress chunk before chunkIndex/totalChunks/ID are
// assigned (those require knowing the final count for the section).
type draft struct {
	headingPath []string
	typ         chunk.Type
	language    string
	text        string
}

// Chunk splits all sections of a document into ordered Chunks. url and
// sourceID feed chunk.DeriveID; the caller stamps DocumentID/ProjectID.
func (c *Chunker) Chunk(sections []docparse.Section, sourceID, url string) []chunk.Chunk {
	var drafts []draft
	for _, sec := range sections {
		drafts = append(drafts, c.chunkSection(sec)...)
	}

	out := make([]chunk.Chunk, len(drafts))
	total := len(drafts)
	for i, d := range drafts {
		out[i] = chunk.Chunk{
			ID:          chunk.DeriveID(sourceID, url, i),
			SourceID:    sourceID,
			ChunkIndex:  i,
			TotalChunks: total,
			Type:        d.typ,
			Text:        d.text,
			HeadingPath: d.headingPath,
			Language:    d.language,
			URL:         url,
			ContentHash: chunk.HashContent(d.text),
		}
		if len(d.headingPath) > 0 {
			out[i].Title = d.headingPath[len(d.headingPath)-1]
		}
	}
	return out
}

func (c *Chunker) chunkSection(sec docparse.Section) []draft {
	if len(sec.Blocks) == 0 {
		if len(sec.HeadingPath) == 0 {
			return nil
		}
		title := sec.HeadingPath[len(sec.HeadingPath)-1]
		return []draft{{headingPath: sec.HeadingPath, typ: chunk.TypeHeadingSection, text: title}}
	}

	var drafts []draft
	var packed []docparse.Block
	packedSize := 0

	flush := func() {
		if len(packed) == 0 {
			return
		}
		drafts = append(drafts, c.buildDraft(sec.HeadingPath, packed))
		carry := overlapBlocks(packed, c.Overlap)
		packed = carry
		packedSize = 0
		for _, b := range packed {
			packedSize += estimateTokens(b.Text)
		}
	}

	for _, blk := range sec.Blocks {
		size := estimateTokens(blk.Text)

		if size > c.TargetSize {
			flush()
			drafts = append(drafts, c.splitOversizedBlock(sec.HeadingPath, blk)...)
			continue
		}

		if packedSize > 0 && packedSize+size > c.TargetSize {
			flush()
		}
		packed = append(packed, blk)
		packedSize += size
	}
	if len(packed) > 0 {
		drafts = append(drafts, c.buildDraft(sec.HeadingPath, packed))
	}
	return drafts
}

func (c *Chunker) buildDraft(headingPath []string, blocks []docparse.Block) draft {
	var texts []string
	typ := chunk.TypeProse
	lang := ""
	for _, b := range blocks {
		texts = append(texts, b.Text)
		if b.Type == chunk.TypeCode {
			typ = chunk.TypeCode
			lang = b.Language
		}
	}
	return draft{headingPath: headingPath, typ: classifyType(headingPath, typ), language: lang, text: strings.Join(texts, "\n\n")}
}

// classifyType refines a block-derived base type (prose or code) using
// the section's heading trail: code under an "Example"/"Usage"
// heading becomes example, prose under an "API"/"Reference" heading
// becomes api-reference.
func classifyType(headingPath []string, base chunk.Type) chunk.Type {
	joined := strings.Join(headingPath, " ")
	switch base {
	case chunk.TypeCode:
		if exampleHeading.MatchString(joined) {
			return chunk.TypeExample
		}
	case chunk.TypeProse:
		if apiReferenceHeading.MatchString(joined) {
			return chunk.TypeAPIReference
		}
	}
	return base
}

// splitOversizedBlock handles a single block (prose or code) larger
// than TargetSize. Prose falls back to sentence-level splitting, the
// way the teacher's splitLargeParagraph does. Code is split on blank
// lines where one is available near the budget boundary, falling back
// to a line boundary otherwise; it is never split mid-line.
func (c *Chunker) splitOversizedBlock(headingPath []string, blk docparse.Block) []draft {
	if blk.Type == chunk.TypeCode {
		typ := classifyType(headingPath, chunk.TypeCode)
		parts := splitCodeByLines(blk.Text, c.TargetSize)
		drafts := make([]draft, len(parts))
		for i, p := range parts {
			drafts[i] = draft{headingPath: headingPath, typ: typ, language: blk.Language, text: p}
		}
		return drafts
	}

	typ := classifyType(headingPath, chunk.TypeProse)
	sentences := sentencePattern.Split(blk.Text, -1)
	var drafts []draft
	var cur []string
	curSize := 0

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		size := estimateTokens(s)
		if curSize > 0 && curSize+size > c.TargetSize {
			drafts = append(drafts, draft{headingPath: headingPath, typ: typ, text: strings.Join(cur, " ")})
			cur = nil
			curSize = 0
		}
		cur = append(cur, s)
		curSize += size
	}
	if len(cur) > 0 {
		drafts = append(drafts, draft{headingPath: headingPath, typ: typ, text: strings.Join(cur, " ")})
	}
	return drafts
}

// splitCodeByLines splits text into pieces of at most targetSize
// estimated tokens, never breaking a line. When the budget is
// exceeded, it backs up to the most recent blank line seen since the
// last split and breaks there; if no blank line was seen, it breaks at
// the current line boundary instead.
func splitCodeByLines(text string, targetSize int) []string {
	lines := strings.Split(text, "\n")
	var out []string
	var cur []string
	curSize := 0
	lastBlank := -1 // index within cur of the most recent blank line

	flush := func(upTo int) {
		out = append(out, strings.Join(cur[:upTo], "\n"))
		rest := append([]string{}, cur[upTo:]...)
		cur = rest
		curSize = 0
		for _, l := range cur {
			curSize += estimateTokens(l)
		}
		lastBlank = -1
	}

	for _, line := range lines {
		size := estimateTokens(line)
		if curSize > 0 && curSize+size > targetSize {
			if lastBlank >= 0 {
				flush(lastBlank + 1)
			} else {
				flush(len(cur))
			}
		}
		cur = append(cur, line)
		curSize += size
		if strings.TrimSpace(line) == "" {
			lastBlank = len(cur) - 1
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n"))
	}
	return out
}

// overlapBlocks returns a trailing slice of blocks whose combined
// token estimate is at most overlapBudget, to seed the next chunk.
func overlapBlocks(blocks []docparse.Block, overlapBudget int) []docparse.Block {
	if overlapBudget <= 0 {
		return nil
	}
	var carry []docparse.Block
	size := 0
	for i := len(blocks) - 1; i >= 0; i-- {
		s := estimateTokens(blocks[i].Text)
		if size+s > overlapBudget {
			break
		}
		carry = append([]docparse.Block{blocks[i]}, carry...)
		size += s
	}
	return carry
}

// estimateTokens approximates token count as one token per four
// characters, matching the teacher's heuristic.
func estimateTokens(text string) int {
	return len(text) / 4
}
