package main

import "github.com/mvp-joe/docs-retriever/internal/cli"

func main() {
	cli.Execute()
}
