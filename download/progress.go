package download

import "io"

// Progress is a snapshot of one transfer. Percent never decreases during a
// transfer; it stays at or below 99 while bytes stream and reaches 100 only on
// the Done event after the file is in place. When the size is unknown,
// Indeterminate is set and Percent stays 0 until Done.
type Progress struct {
	ModID         int
	FileName      string
	Written       int64
	Total         int64
	Percent       int
	Indeterminate bool
	Done          bool
}

// progressWriter counts bytes on their way to the temp file and reports
// progress and activity.
type progressWriter struct {
	w        io.Writer
	state    Progress
	onUpdate func(Progress)
	activity chan<- struct{}
	writeErr error
}

func newProgressWriter(w io.Writer, modID int, fileName string, total int64, onUpdate func(Progress), activity chan<- struct{}) *progressWriter {
	return &progressWriter{
		w: w,
		state: Progress{
			ModID:         modID,
			FileName:      fileName,
			Total:         total,
			Indeterminate: total <= 0,
		},
		onUpdate: onUpdate,
		activity: activity,
	}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if err != nil {
		pw.writeErr = err
	}
	if n > 0 {
		pw.state.Written += int64(n)
		if pw.activity != nil {
			select {
			case pw.activity <- struct{}{}:
			default:
			}
		}
		pw.report()
	}
	return n, err
}

func (pw *progressWriter) report() {
	if !pw.state.Indeterminate {
		pct := int(pw.state.Written * 100 / pw.state.Total)
		pct = min(pct, 99)
		if pct > pw.state.Percent {
			pw.state.Percent = pct
		}
	}
	if pw.onUpdate != nil {
		pw.onUpdate(pw.state)
	}
}

// finish emits the final 100% event.
func (pw *progressWriter) finish() {
	pw.state.Percent = 100
	pw.state.Done = true
	if pw.onUpdate != nil {
		pw.onUpdate(pw.state)
	}
}

func (pw *progressWriter) written() int64 { return pw.state.Written }
