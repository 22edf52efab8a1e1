package main

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// progress shows a spinner with a status message while a request runs. It
// is silent unless w is a terminal.
type progress struct {
	s *spinner.Spinner
}

func newProgress(w io.Writer) *progress {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return &progress{}
	}
	return &progress{
		s: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f)),
	}
}

// Update replaces the status message, starting the spinner on first use.
func (p *progress) Update(msg string) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = " " + msg
	p.s.Unlock()
	if !p.s.Active() {
		p.s.Start()
	}
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}
