package domain

import (
	"fmt"
	"time"
)

// Dated is anything that can be placed on the calendar for partitioning.
type Dated interface {
	Date() time.Time
}

// Window holds the inclusive date bounds of a walk-forward split.
type Window struct {
	TrainEnd time.Time
	TestEnd  time.Time
}

// Validate requires the test window to end after the train window.
func (w Window) Validate() error {
	if w.TrainEnd.IsZero() || w.TestEnd.IsZero() {
		return fmt.Errorf("train end and test end are required")
	}
	if !w.TestEnd.After(w.TrainEnd) {
		return fmt.Errorf("test end %s must be after train end %s",
			w.TestEnd.Format(time.DateOnly), w.TrainEnd.Format(time.DateOnly))
	}
	return nil
}

// SplitByDate partitions rows into disjoint train and test sets:
// train holds date <= TrainEnd, test holds TrainEnd < date <= TestEnd.
// Rows after TestEnd land in neither. Input order is preserved.
func SplitByDate[T Dated](rows []T, w Window) (train, test []T) {
	train = make([]T, 0, len(rows))
	test = make([]T, 0)
	for _, r := range rows {
		d := r.Date()
		switch {
		case !d.After(w.TrainEnd):
			train = append(train, r)
		case !d.After(w.TestEnd):
			test = append(test, r)
		}
	}
	return train, test
}
