// Package rating keeps the running weighted-average rating per entity.
package rating

import "errors"

var ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

// Unrated is the sort value for entities that have never been rated.
// It compares below any real rating so unrated drivers lose matching
// tie-breaks against rated ones.
const Unrated = -1.0

type Totals struct {
	Sum   int `json:"sum"`
	Count int `json:"count"`
}

// Record adds a score in [1,5]. Invalid scores leave the totals untouched.
func (t *Totals) Record(score int) error {
	if score < 1 || score > 5 {
		return ErrInvalidRating
	}
	t.Sum += score
	t.Count++
	return nil
}

// Average returns the arithmetic mean of all recorded scores. The second
// return is false when nothing has been recorded yet.
func (t Totals) Average() (float64, bool) {
	if t.Count == 0 {
		return 0, false
	}
	return float64(t.Sum) / float64(t.Count), true
}

// SortValue is the average, or Unrated when there are no scores.
func (t Totals) SortValue() float64 {
	avg, ok := t.Average()
	if !ok {
		return Unrated
	}
	return avg
}
