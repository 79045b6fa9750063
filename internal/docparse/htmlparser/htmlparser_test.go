package htmlparser

import (
	"testing"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/stretchr/testify/require"
)

func TestParse_HeadingsAndCode(t *testing.T) {
	doc := `<html><body>
		<nav>skip this nav</nav>
		<h1>Title</h1>
		<p>Intro paragraph.</p>
		<h2>Usage</h2>
		<p>Some text.</p>
		<pre><code class="language-go">fmt.Println("hi")</code></pre>
	</body></html>`

	sections, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	require.Equal(t, []string{"Title"}, sections[0].HeadingPath)
	require.Contains(t, sections[0].Blocks[0].Text, "Intro paragraph")

	require.Equal(t, []string{"Title", "Usage"}, sections[1].HeadingPath)
	var sawCode bool
	for _, b := range sections[1].Blocks {
		if b.Type == chunk.TypeCode {
			sawCode = true
			require.Equal(t, "go", b.Language)
		}
	}
	require.True(t, sawCode)
}

func TestParse_StripsChrome(t *testing.T) {
	doc := `<html><body><script>var x = 1;</script><h1>T</h1><p>ok</p></body></html>`
	sections, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.NotContains(t, sections[0].Blocks[0].Text, "var x")
}
