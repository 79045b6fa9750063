// Package docparse turns a raw document's bytes into heading-scoped
// sections, separating prose from fenced/embedded code the way the
// chunker needs it. Markdown and HTML sources each get their own
// sub-parser; both produce the same Section shape.
package docparse

import "github.com/mvp-joe/docs-retriever/internal/chunk"

// Section is one heading-scoped span of a document, already split into
// a prose portion and zero or more embedded code portions in source
// order. The chunker is responsible for further size-based splitting;
// docparse only establishes structure.
type Section struct {
	HeadingPath []string
	Blocks      []Block
}

// Block is one paragraph- or code-fence-sized span within a Section.
type Block struct {
	Type     chunk.Type
	Text     string
	Language string
}
