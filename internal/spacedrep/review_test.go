package spacedrep

import (
	"testing"
	"time"
)

var reviewDate = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestIsDue(t *testing.T) {
	rs := &ReviewState{NextReviewDate: reviewDate}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before date", reviewDate.Add(-24 * time.Hour), false},
		{"on date", reviewDate, true},
		{"after date", reviewDate.Add(48 * time.Hour), true},
	}
	for _, tt := range tests {
		if got := rs.IsDue(tt.now); got != tt.want {
			t.Errorf("%s: IsDue() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOverdueDays(t *testing.T) {
	rs := &ReviewState{NextReviewDate: reviewDate}
	if got := rs.OverdueDays(reviewDate.Add(-time.Hour)); got != 0 {
		t.Errorf("OverdueDays() before due = %f, want 0", got)
	}
	got := rs.OverdueDays(reviewDate.Add(3 * 24 * time.Hour))
	if got < 2.99 || got > 3.01 {
		t.Errorf("OverdueDays() = %f, want ~3.0", got)
	}
}

func TestIntervalDays(t *testing.T) {
	tests := []struct {
		stage     int
		graduated bool
		want      int
	}{
		{0, false, 1},
		{1, false, 3},
		{2, false, 7},
		{3, false, 14},
		{4, false, 30},
		{5, false, 60},
		{9, false, 60},
		{-1, false, 1},
		{6, true, 90},
	}
	for _, tt := range tests {
		if got := IntervalDays(tt.stage, tt.graduated); got != tt.want {
			t.Errorf("IntervalDays(%d, %v) = %d, want %d", tt.stage, tt.graduated, got, tt.want)
		}
	}
}

func TestMissThenHits_Graduates(t *testing.T) {
	rs := &ReviewState{ItemID: "q1"}
	rs.miss(reviewDate)
	if rs.Stage != 0 || !rs.NextReviewDate.Equal(reviewDate.AddDate(0, 0, 1)) {
		t.Fatalf("after miss: %+v", rs)
	}

	now := reviewDate
	for i := 1; i <= GraduationHits; i++ {
		now = rs.NextReviewDate
		rs.hit(now)
		if i < GraduationHits && rs.Graduated {
			t.Fatalf("graduated early after %d hits", i)
		}
	}
	if !rs.Graduated {
		t.Fatalf("not graduated after %d hits: %+v", GraduationHits, rs)
	}
	if want := now.AddDate(0, 0, 90); !rs.NextReviewDate.Equal(want) {
		t.Errorf("NextReviewDate = %v, want %v", rs.NextReviewDate, want)
	}

	rs.miss(now)
	if rs.Graduated || rs.ConsecutiveHits != 0 {
		t.Errorf("miss must reset graduation: %+v", rs)
	}
}
