package validationlog

import "proxywarden/internal/domain"

// Recorder receives probe outcomes.
type Recorder interface {
	Record(rec domain.ValidationRecord)
}

// Tee fans every record out to all non-nil recorders in order.
type Tee []Recorder

func NewTee(recorders ...Recorder) Tee {
	out := make(Tee, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (t Tee) Record(rec domain.ValidationRecord) {
	for _, r := range t {
		r.Record(rec)
	}
}
