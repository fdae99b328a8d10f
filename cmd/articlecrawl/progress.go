package main

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// progressReporter draws a terminal bar that advances with each saved article.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, quota, saved int) *progressReporter {
	bar := progressbar.NewOptions(quota,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("articles"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	if saved > 0 {
		_ = bar.Set(saved)
	}
	return &progressReporter{bar: bar}
}

// ArticleSaved moves the bar to the saved count.
func (p *progressReporter) ArticleSaved(saved, _ int) {
	_ = p.bar.Set(saved)
}
