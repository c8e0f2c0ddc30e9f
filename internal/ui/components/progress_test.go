package components

import (
	"strings"
	"testing"
)

func TestCell_Bounds(t *testing.T) {
	tests := []struct {
		theta float64
		want  int
	}{
		{-3, 0},
		{-9, 0},
		{3, 20},
		{0, 10},
	}
	for _, tt := range tests {
		if got := cell(tt.theta, 21); got != tt.want {
			t.Errorf("cell(%v, 21) = %d, want %d", tt.theta, got, tt.want)
		}
	}
}

func TestAbilityBar_View(t *testing.T) {
	v := NewAbilityBar(0.5, 0.3, 24).View()
	if n := strings.Count(v, "●"); n != 1 {
		t.Errorf("bar has %d markers, want 1", n)
	}
	if !strings.Contains(v, "━") {
		t.Error("bar is missing its error band")
	}

	// Narrow widths are widened to a readable minimum.
	v = NewAbilityBar(0, 0.2, 2).View()
	if got := strings.Count(v, "●") + strings.Count(v, "━") + strings.Count(v, "─"); got != 8 {
		t.Errorf("narrow bar has %d cells, want 8", got)
	}
}
