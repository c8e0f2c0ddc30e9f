package spacedrep

import "time"

// intervals are the review gaps in days for stages 0 through 5.
var intervals = [...]int{1, 3, 7, 14, 30, 60}

const (
	// GraduationHits is the run of consecutive hits that retires an item
	// from review.
	GraduationHits = 6

	graduatedInterval = 90
)

// ReviewState holds the review schedule of one missed item.
type ReviewState struct {
	ItemID          string    `json:"item_id"`
	TopicKey        string    `json:"topic"`
	Stage           int       `json:"stage"`
	NextReviewDate  time.Time `json:"next_review_date"`
	ConsecutiveHits int       `json:"consecutive_hits"`
	Graduated       bool      `json:"graduated"`
	LastReviewDate  time.Time `json:"last_review_date"`
	LastMissed      time.Time `json:"last_missed"`
}

// IsDue returns true if the item is due for review (at or past the review date).
func (rs *ReviewState) IsDue(now time.Time) bool {
	return !now.Before(rs.NextReviewDate)
}

// OverdueDays returns how many days past due the item is. Returns 0 if not yet due.
func (rs *ReviewState) OverdueDays(now time.Time) float64 {
	if now.Before(rs.NextReviewDate) {
		return 0
	}
	return now.Sub(rs.NextReviewDate).Hours() / 24.0
}

// IntervalDays returns the days until the next review of an item at
// stage. Stages past the last interval keep the last one.
func IntervalDays(stage int, graduated bool) int {
	switch {
	case graduated:
		return graduatedInterval
	case stage < 0:
		return intervals[0]
	case stage >= len(intervals):
		return intervals[len(intervals)-1]
	}
	return intervals[stage]
}

// miss resets the item to the first stage.
func (rs *ReviewState) miss(now time.Time) {
	rs.Stage = 0
	rs.ConsecutiveHits = 0
	rs.Graduated = false
	rs.LastMissed = now
	rs.LastReviewDate = now
	rs.NextReviewDate = now.AddDate(0, 0, intervals[0])
}

// hit advances the item one stage.
func (rs *ReviewState) hit(now time.Time) {
	rs.LastReviewDate = now
	rs.ConsecutiveHits++
	if !rs.Graduated {
		rs.Stage++
		if rs.ConsecutiveHits >= GraduationHits {
			rs.Graduated = true
		}
	}
	rs.NextReviewDate = now.AddDate(0, 0, IntervalDays(rs.Stage, rs.Graduated))
}
