package bank

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abhisek/adaptest/internal/irt"
)

// CheckAnswer compares the student's input against the item's answer.
//
// Normalization rules:
// - Whitespace is trimmed
// - Comparison is case-insensitive
// - For fractions: equivalent fractions are accepted (e.g., "2/4" matches "1/2")
// - For decimals: trailing zeros are ignored, and Tolerance applies if set
// - For integers: leading zeros are ignored (e.g., "007" matches "7")
// - For choice items: matches against the choice text or its 1-based index
func CheckAnswer(answer string, item *Item) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	if item.Type == irt.TypeChoice {
		return checkChoice(answer, item)
	}

	if item.AnswerType == AnswerTypeDecimal && item.Tolerance > 0 {
		got, err1 := strconv.ParseFloat(answer, 64)
		want, err2 := strconv.ParseFloat(strings.TrimSpace(item.Answer), 64)
		if err1 != nil || err2 != nil {
			return false
		}
		return math.Abs(got-want) <= item.Tolerance
	}

	normalizedGiven, err := normalizeAnswer(answer, item.AnswerType)
	if err != nil {
		return false
	}
	normalizedCorrect, err := normalizeAnswer(item.Answer, item.AnswerType)
	if err != nil {
		return false
	}
	return normalizedGiven == normalizedCorrect
}

// checkChoice checks the answer against the item's choices.
func checkChoice(answer string, item *Item) bool {
	if idx, err := strconv.Atoi(answer); err == nil && idx >= 1 && idx <= len(item.Choices) {
		return strings.EqualFold(
			strings.TrimSpace(item.Choices[idx-1]),
			strings.TrimSpace(item.Answer),
		)
	}

	return strings.EqualFold(answer, strings.TrimSpace(item.Answer))
}

// normalizeAnswer normalizes an answer string for comparison.
func normalizeAnswer(answer string, answerType AnswerType) (string, error) {
	answer = strings.TrimSpace(answer)

	switch answerType {
	case AnswerTypeInteger:
		n, err := strconv.ParseInt(answer, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid integer: %w", err)
		}
		return strconv.FormatInt(n, 10), nil

	case AnswerTypeDecimal:
		f, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return "", fmt.Errorf("invalid decimal: %w", err)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case AnswerTypeFraction:
		num, den, err := parseFraction(answer)
		if err != nil {
			return "", err
		}
		if den == 0 {
			return "", fmt.Errorf("zero denominator")
		}
		if den < 0 {
			num = -num
			den = -den
		}
		g := gcd(abs(num), den)
		if g == 0 {
			g = 1
		}
		return fmt.Sprintf("%d/%d", num/g, den/g), nil

	default:
		return strings.ToLower(answer), nil
	}
}

// parseFraction parses "a/b" into numerator and denominator. A bare
// integer is read as a/1.
func parseFraction(s string) (int64, int64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		n, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid fraction format: %q", s)
		}
		return n, 1, nil
	}
	num, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid numerator: %w", err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid denominator: %w", err)
	}
	return num, den, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
