package mdparser

import (
	"testing"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/stretchr/testify/require"
)

func TestParse_HeadingsAndCode(t *testing.T) {
	content := "# Title\n\nIntro paragraph.\n\n## Usage\n\nSome text.\n\n```go\nfmt.Println(\"hi\")\n```\n\nMore text.\n"

	sections := Parse(content)
	require.Len(t, sections, 2)

	require.Equal(t, []string{"Title"}, sections[0].HeadingPath)
	require.Len(t, sections[0].Blocks, 1)
	require.Equal(t, chunk.TypeProse, sections[0].Blocks[0].Type)

	require.Equal(t, []string{"Title", "Usage"}, sections[1].HeadingPath)
	require.Len(t, sections[1].Blocks, 3)
	require.Equal(t, chunk.TypeProse, sections[1].Blocks[0].Type)
	require.Equal(t, chunk.TypeCode, sections[1].Blocks[1].Type)
	require.Equal(t, "go", sections[1].Blocks[1].Language)
	require.Equal(t, chunk.TypeProse, sections[1].Blocks[2].Type)
}

func TestParse_Empty(t *testing.T) {
	require.Empty(t, Parse(""))
	require.Empty(t, Parse("   \n\n  "))
}

func TestParse_NoHeadings(t *testing.T) {
	sections := Parse("just a paragraph\nwith two lines")
	require.Len(t, sections, 1)
	require.Empty(t, sections[0].HeadingPath)
}
