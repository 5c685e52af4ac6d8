package sync

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// stepProgress draws a bar for one cascade level, e.g. the jobs of every
// synced company. A nil *stepProgress is a no-op.
type stepProgress struct {
	bar *pb.ProgressBar
}

func newStepProgress(w io.Writer, label string, total int) *stepProgress {
	if w == nil || total == 0 {
		return nil
	}
	bar := pb.New(total)
	bar.SetWriter(w)
	bar.SetTemplate(`{{string . "label"}} {{counters . }} {{bar . }} {{percent . }} {{etime . }}`)
	bar.Set("label", label)
	bar.Start()
	return &stepProgress{bar: bar}
}

func (p *stepProgress) increment() {
	if p != nil {
		p.bar.Increment()
	}
}

func (p *stepProgress) finish() {
	if p != nil {
		p.bar.Finish()
	}
}
