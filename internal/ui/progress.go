package ui

import (
	"io"
	"path/filepath"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const nameWidth = 32

// Progress manages download progress bars.
type Progress struct {
	p *mpb.Progress
}

// NewProgress creates a progress container writing to the ui output.
func NewProgress() *Progress {
	return &Progress{
		p: mpb.New(
			mpb.WithOutput(Writer()),
			mpb.WithWidth(40),
			mpb.WithAutoRefresh(),
		),
	}
}

// AddBar adds a bar for a transfer of total bytes. A non-positive total
// means unknown; call SetTotal once it is known.
func (p *Progress) AddBar(name string, total int64) *Bar {
	display := filepath.Base(name)
	if len(display) > nameWidth {
		display = display[:nameWidth-3] + "..."
	}

	bar := p.p.New(total,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(display, decor.WC{W: nameWidth, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.Percentage(decor.WC{W: 5}),
		),
	)
	return &Bar{bar: bar}
}

// Wait blocks until all bars complete.
func (p *Progress) Wait() {
	p.p.Wait()
}

// Bar wraps an mpb.Bar.
type Bar struct {
	bar *mpb.Bar
}

// SetTotal updates the expected size.
func (b *Bar) SetTotal(total int64) {
	b.bar.SetTotal(total, false)
}

// Complete marks the bar as done using the bytes seen so far as total.
func (b *Bar) Complete() {
	b.bar.SetTotal(-1, true)
}

// Abort removes the bar after a failure.
func (b *Bar) Abort() {
	b.bar.Abort(true)
}

// ProxyReader counts bytes read through r.
func (b *Bar) ProxyReader(r io.Reader) io.ReadCloser {
	return b.bar.ProxyReader(r)
}
