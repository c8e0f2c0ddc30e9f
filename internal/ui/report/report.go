package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/quiz"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/student"
	"github.com/abhisek/adaptest/internal/topics"
	"github.com/abhisek/adaptest/internal/ui/components"
	"github.com/abhisek/adaptest/internal/ui/theme"
)

const barWidth = 24

// Student renders a student's abilities as a table. A nil catalog shows
// raw topic keys.
func Student(st *student.Student, cat *topics.Catalog) string {
	var sb strings.Builder

	sb.WriteString(theme.Title.Render("Student "+st.ID) + "\n")
	sb.WriteString(fmt.Sprintf("Phase %s · %d quizzes · overall θ %+.2f (%.1f percentile)\n",
		st.Phase, st.QuizzesCompleted, st.Overall, st.OverallPercentile))
	if st.Breaker.Triggered() {
		sb.WriteString(theme.Bad.Render(fmt.Sprintf("Recovery mode since %s",
			st.Breaker.TriggeredAt.Local().Format("2006-01-02"))) + "\n")
	} else if st.Breaker.ConsecutiveFailures > 0 {
		sb.WriteString(theme.Warn.Render(fmt.Sprintf("%d low-accuracy quizzes in a row",
			st.Breaker.ConsecutiveFailures)) + "\n")
	}

	if len(st.Abilities) == 0 {
		sb.WriteString("\n" + theme.Hint.Render("No answers recorded yet.") + "\n")
		return sb.String()
	}

	keys := make([]string, 0, len(st.Abilities))
	for k := range st.Abilities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("\n" + theme.Heading.Render(fmt.Sprintf("%-24s  %5s  %5s  %6s  %5s  %6s  %s",
		"Topic", "Tries", "Acc", "θ", "SE", "Pctl", "Ability")) + "\n")
	sb.WriteString(strings.Repeat("─", 70+barWidth) + "\n")
	for _, k := range keys {
		a := st.Abilities[k]
		name := k
		if cat != nil {
			if t, ok := cat.Get(k); ok {
				name = t.DisplayName()
			}
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		sb.WriteString(fmt.Sprintf("%-24s  %5d  %4.0f%%  %+6.2f  %5.2f  %6.1f  %s\n",
			name, a.Attempts, 100*a.Accuracy, a.Theta, a.StandardError, a.Percentile(),
			components.NewAbilityBar(a.Theta, a.StandardError, barWidth).View()))
	}

	if len(st.Subjects) > 0 {
		subjects := make([]string, 0, len(st.Subjects))
		for s := range st.Subjects {
			subjects = append(subjects, s)
		}
		sort.Strings(subjects)
		sb.WriteString("\n" + theme.Heading.Render("Subjects") + "\n")
		for _, s := range subjects {
			theta := st.Subjects[s]
			sb.WriteString(fmt.Sprintf("%-24s  %+6.2f  %6.1f\n", s, theta, irt.Percentile(theta)))
		}
	}
	return sb.String()
}

// Quiz renders a quiz for answering.
func Quiz(v *quiz.View) string {
	var sb strings.Builder
	title := fmt.Sprintf("Quiz %s (%s)", v.ID, v.Phase)
	sb.WriteString(theme.Title.Render(title) + "\n")
	if v.Recovery {
		sb.WriteString(theme.Warn.Render("Recovery quiz: easier items to rebuild confidence") + "\n")
	}
	for _, w := range v.Warnings {
		sb.WriteString(theme.Hint.Render(w) + "\n")
	}
	for _, it := range v.Items {
		mark := " "
		if it.Answered {
			mark = theme.Good.Render("✓")
		}
		sb.WriteString(fmt.Sprintf("\n%s [%d] %s  %s\n", mark, it.Position, theme.Heading.Render(it.TopicKey), theme.Hint.Render(string(it.Reason))))
		sb.WriteString("    " + theme.Body.Render(it.Prompt) + "\n")
		for i, c := range it.Choices {
			sb.WriteString(fmt.Sprintf("      %d) %s\n", i+1, c))
		}
	}
	return sb.String()
}

// Result renders a completed quiz summary.
func Result(res *quiz.Result) string {
	score := theme.Good
	if res.BreakerTriggered {
		score = theme.Bad
	}
	lines := []string{
		theme.Title.Render("Quiz " + res.QuizID + " complete"),
		score.Render(fmt.Sprintf("Score %.0f%% (%d/%d correct, %d answered)", res.Score, res.Correct, res.Total, res.Answered)),
		fmt.Sprintf("Overall θ %+.2f · %.1f percentile", res.Overall, res.Percentile),
		fmt.Sprintf("Phase %s · breaker %s", res.Phase, res.BreakerOutcome),
	}
	return theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

// SimRow is one simulated student.
type SimRow struct {
	StudentID string
	TrueTheta float64
	Estimate  float64
	Quizzes   int
	Accuracy  float64
	Recovery  int
}

// Simulation renders the outcome of simulated students.
func Simulation(rows []SimRow) string {
	var sb strings.Builder
	sb.WriteString(theme.Heading.Render(fmt.Sprintf("%-12s  %6s  %6s  %6s  %7s  %5s  %8s",
		"Student", "True θ", "Est θ", "Error", "Quizzes", "Acc", "Recovery")) + "\n")
	sb.WriteString(strings.Repeat("─", 64) + "\n")
	var sumErr float64
	for _, r := range rows {
		diff := r.Estimate - r.TrueTheta
		sumErr += diff * diff
		sb.WriteString(fmt.Sprintf("%-12s  %+6.2f  %+6.2f  %+6.2f  %7d  %4.0f%%  %8d\n",
			r.StudentID, r.TrueTheta, r.Estimate, diff, r.Quizzes, 100*r.Accuracy, r.Recovery))
	}
	if len(rows) > 0 {
		rmse := sumErr / float64(len(rows))
		sb.WriteString("\n" + theme.Hint.Render(fmt.Sprintf("RMSE %.3f over %d students", math.Sqrt(rmse), len(rows))) + "\n")
	}
	return sb.String()
}

// Reviews summarizes a student's review schedule.
func Reviews(states map[string]*spacedrep.ReviewState, now time.Time) string {
	if len(states) == 0 {
		return theme.Hint.Render("No items scheduled for review.") + "\n"
	}
	var due, graduated int
	for _, rs := range states {
		switch {
		case rs.Graduated:
			graduated++
		case rs.IsDue(now):
			due++
		}
	}
	line := fmt.Sprintf("%d items tracked for review · %d due · %d graduated",
		len(states), due, graduated)
	if due > 0 {
		return theme.Warn.Render(line) + "\n"
	}
	return theme.Hint.Render(line) + "\n"
}
