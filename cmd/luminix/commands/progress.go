package commands

import (
	"encoding/json"
	"os"

	"github.com/pterm/pterm"

	"github.com/luminix/luminix/pkg/progress"
)

// progressSink renders progress events for the terminal, or as JSON lines
// on stderr when machine output was requested.
type progressSink struct {
	json bool
	bar  *pterm.ProgressbarPrinter
}

func newProgressSink(jsonMode bool) *progressSink {
	return &progressSink{json: jsonMode}
}

// Emit implements progress.Sink.
func (s *progressSink) Emit(ev progress.Event) {
	if s.json {
		// Events go to stderr so stdout stays a single result document.
		_ = json.NewEncoder(os.Stderr).Encode(ev)
		return
	}

	if s.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle(ev.Message).
			Start()
		if err != nil {
			return
		}
		s.bar = bar
	}

	s.bar.UpdateTitle(ev.Message)
	if delta := ev.Percent - s.bar.Current; delta > 0 {
		s.bar.Add(delta)
	}
}

// done stops the progress bar, if one was started.
func (s *progressSink) done() {
	if s.bar != nil {
		_, _ = s.bar.Stop()
		s.bar = nil
	}
}
