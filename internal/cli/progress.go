package cli

import (
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/docs-retriever/internal/embedclient"
)

// reportEmbeddingProgress drives a CLI progress bar off the Indexer's
// embedding progress channel, grounded on the teacher's
// internal/cli/progress.go OnEmbeddingStart/OnEmbeddingProgress bar
// options (width, throttle, elapsed-time-on-finish).
func reportEmbeddingProgress(progressCh <-chan embedclient.Progress, done chan<- struct{}) {
	defer close(done)

	var bar *progressbar.ProgressBar
	for p := range progressCh {
		if bar == nil {
			bar = progressbar.NewOptions(p.TotalChunks,
				progressbar.OptionSetDescription("Generating embeddings"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("chunks/s"),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionShowElapsedTimeOnFinish(),
			)
		}
		bar.Set(p.ProcessedChunks)
	}
	if bar != nil {
		bar.Finish()
	}
}
