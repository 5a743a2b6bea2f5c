package app

import (
	"fmt"

	"github.com/schollz/progressbar/v3"

	"proxywarden/internal/domain"
	"proxywarden/internal/jobs/checker"
	"proxywarden/internal/orchestrator"
)

// progressBar counts finished probes. The total is unknown up front, so the
// bar renders as a spinner with a running count.
type progressBar struct {
	bar *progressbar.ProgressBar
}

func newProgressBar() *progressBar {
	return &progressBar{bar: progressbar.Default(-1, "starting")}
}

func (p *progressBar) Observe(r checker.Result) {
	if r.Outcome == checker.OutcomeCancelled || r.Outcome == checker.OutcomeSkipped {
		return
	}
	_ = p.bar.Add(1)
}

func (p *progressBar) Describe(t domain.ProxyType, s orchestrator.State) {
	p.bar.Describe(fmt.Sprintf("%s %s", t.Upper(), s))
}

func (p *progressBar) Finish() {
	_ = p.bar.Finish()
}
