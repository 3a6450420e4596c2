package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	progressBar   = "█"
	progressEmpty = "░"
	progressWidth = 20
)

// Progress renders a single-line download progress bar. When stdout is
// not a terminal it stays silent; counts still land in the run summary
// and the structured log.
type Progress struct {
	total int
	start time.Time
	isTTY bool
}

// NewProgress creates a progress display for the given item count
func NewProgress(total int) *Progress {
	return &Progress{
		total: total,
		start: time.Now(),
		isTTY: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Update redraws the progress line
func (p *Progress) Update(completed int) {
	if !p.isTTY || p.total == 0 {
		return
	}

	filled := completed * progressWidth / p.total
	if filled > progressWidth {
		filled = progressWidth
	}
	bar := strings.Repeat(progressBar, filled) +
		strings.Repeat(progressEmpty, progressWidth-filled)

	fmt.Printf("\r%s [%s] %d/%d (%.1f/min)",
		Green("[ARCHIVING]"), bar, completed, p.total, p.rate(completed))
}

// Finish terminates the progress line
func (p *Progress) Finish() {
	if p.isTTY && p.total > 0 {
		fmt.Println()
	}
}

// rate is the average throughput in items per minute
func (p *Progress) rate(completed int) float64 {
	elapsed := time.Since(p.start).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(completed) / elapsed
}
