package chunker

import (
	"strings"
	"testing"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/docparse"
	"github.com/mvp-joe/docs-retriever/internal/docparse/mdparser"
	"github.com/stretchr/testify/require"
)

func TestChunk_SmallSectionSingleChunk(t *testing.T) {
	sections := mdparser.Parse("# Title\n\nA short paragraph.\n")
	c := New(200, 20)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, 1, chunks[0].TotalChunks)
	require.Equal(t, "Title", chunks[0].Title)
}

func TestChunk_ContiguousIndexing(t *testing.T) {
	big := strings.Repeat("Some words here. ", 200)
	sections := mdparser.Parse("# Title\n\n" + big)
	c := New(50, 5)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")
	require.True(t, len(chunks) > 1)
	for i, ch := range chunks {
		require.Equal(t, i, ch.ChunkIndex)
		require.Equal(t, len(chunks), ch.TotalChunks)
	}
}

func TestChunk_OversizeCodeSplitsOnLineBoundaries(t *testing.T) {
	line := "fmt.Println(\"x\")"
	code := "```go\n" + strings.Repeat(line+"\n", 100) + "```"
	sections := mdparser.Parse("# Title\n\n" + code)
	c := New(50, 0)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")

	require.True(t, len(chunks) > 1, "oversize code must be split into multiple chunks")

	var rejoined []string
	for _, ch := range chunks {
		require.Equal(t, chunk.TypeCode, ch.Type)
		for _, l := range strings.Split(ch.Text, "\n") {
			require.Equal(t, line, l, "chunk boundaries must fall on line boundaries, never mid-line")
			rejoined = append(rejoined, l)
		}
	}
	require.Len(t, rejoined, 100)
}

func TestChunk_OversizeCodeUnderExampleHeadingClassifiedAsExample(t *testing.T) {
	code := "```go\n" + strings.Repeat("fmt.Println(\"x\")\n", 100) + "```"
	sections := mdparser.Parse("# Examples\n\n" + code)
	c := New(50, 0)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")
	require.True(t, len(chunks) > 1)
	for _, ch := range chunks {
		require.Equal(t, chunk.TypeExample, ch.Type)
	}
}

func TestChunk_HeadingOnlySectionBecomesHeadingSection(t *testing.T) {
	sections := mdparser.Parse("# Title\n\n## Empty Section\n\n## Next\n\nSome body.\n")
	c := New(200, 20)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")

	var sawEmptySection bool
	for _, ch := range chunks {
		if ch.Type == chunk.TypeHeadingSection && ch.Text == "Empty Section" {
			sawEmptySection = true
		}
	}
	require.True(t, sawEmptySection)
}

func TestChunk_APIReferenceHeadingClassification(t *testing.T) {
	sections := mdparser.Parse("# API Reference\n\nDescribes the public surface.\n")
	c := New(200, 20)
	chunks := c.Chunk(sections, "src-1", "https://example.com/a")
	require.Len(t, chunks, 1)
	require.Equal(t, chunk.TypeAPIReference, chunks[0].Type)
}

func TestChunk_DeterministicIDs(t *testing.T) {
	sections := mdparser.Parse("# Title\n\nSome text.\n")
	c := New(200, 20)
	a := c.Chunk(sections, "src-1", "https://example.com/a")
	b := c.Chunk(sections, "src-1", "https://example.com/a")
	require.Equal(t, a[0].ID, b[0].ID)
}

func TestChunkSection_OverlapCarriesContext(t *testing.T) {
	sec := docparse.Section{
		HeadingPath: []string{"T"},
		Blocks: []docparse.Block{
			{Type: chunk.TypeProse, Text: strings.Repeat("alpha ", 5)},
			{Type: chunk.TypeProse, Text: strings.Repeat("beta ", 5)},
			{Type: chunk.TypeProse, Text: strings.Repeat("gamma ", 5)},
		},
	}
	c := New(15, 10)
	drafts := c.chunkSection(sec)
	require.True(t, len(drafts) > 1)
	require.Len(t, drafts, 2)
	require.True(t, strings.HasPrefix(drafts[1].text, strings.Repeat("beta ", 5)), "second chunk must start with the carried-over block")
}
