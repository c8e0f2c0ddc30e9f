package bank

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/abhisek/adaptest/internal/irt"
)

// DefaultDiscrimination is used when an imported item carries none.
const DefaultDiscrimination = 1.0

// rawItem accepts every field name that item banks have used over time.
type rawItem struct {
	ID          string   `json:"id"`
	Topic       string   `json:"topic"`
	TopicKey    string   `json:"topic_key"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Answer      string   `json:"answer"`
	AnswerType  string   `json:"answer_type"`
	Choices     []string `json:"choices"`
	Tolerance   float64  `json:"tolerance"`
	Explanation string   `json:"explanation"`
	Active      *bool    `json:"active"`

	A *float64 `json:"a"`
	B *float64 `json:"b"`
	C *float64 `json:"c"`

	Discrimination *float64 `json:"discrimination"`
	Difficulty     *float64 `json:"difficulty"`
	Guessing       *float64 `json:"guessing"`

	IRTA *float64 `json:"irt_a"`
	IRTB *float64 `json:"irt_b"`
	IRTC *float64 `json:"irt_c"`

	Params *struct {
		A *float64 `json:"a"`
		B *float64 `json:"b"`
		C *float64 `json:"c"`
	} `json:"params"`
}

type rawDocument struct {
	Items []rawItem `json:"items"`
}

// Decode validates an item-bank document and normalizes every item to the
// current model. Legacy parameter names are resolved here and nowhere else.
func Decode(raw []byte) ([]Item, error) {
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode item bank: %w", err)
	}

	items := make([]Item, 0, len(doc.Items))
	seen := make(map[string]bool, len(doc.Items))
	for i, r := range doc.Items {
		item, err := r.normalize()
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, r.ID, err)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("item %d: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items, nil
}

func (r rawItem) normalize() (Item, error) {
	item := Item{
		ID:          r.ID,
		TopicKey:    firstString(r.Topic, r.TopicKey),
		Prompt:      r.Prompt,
		Choices:     r.Choices,
		Answer:      r.Answer,
		AnswerType:  AnswerType(r.AnswerType),
		Tolerance:   r.Tolerance,
		Explanation: r.Explanation,
		Active:      r.Active == nil || *r.Active,
	}

	if item.ID == "" || item.TopicKey == "" {
		return Item{}, fmt.Errorf("id and topic are required")
	}
	if strings.Contains(item.ID, "/") || strings.Contains(item.TopicKey, "/") {
		return Item{}, fmt.Errorf("id and topic must not contain '/'")
	}

	switch r.Type {
	case "choice", "multiple_choice":
		item.Type = irt.TypeChoice
		if len(item.Choices) < 2 {
			return Item{}, fmt.Errorf("choice item needs at least 2 choices")
		}
	case "numeric":
		item.Type = irt.TypeNumeric
		if item.AnswerType == "" {
			item.AnswerType = AnswerTypeDecimal
		}
	default:
		return Item{}, fmt.Errorf("unknown item type %q", r.Type)
	}

	var pa, pb, pc *float64
	if r.Params != nil {
		pa, pb, pc = r.Params.A, r.Params.B, r.Params.C
	}

	a := firstFloat(r.A, r.Discrimination, r.IRTA, pa)
	b := firstFloat(r.B, r.Difficulty, r.IRTB, pb)
	c := firstFloat(r.C, r.Guessing, r.IRTC, pc)

	if b == nil {
		return Item{}, fmt.Errorf("missing difficulty")
	}
	item.Params.B = *b
	item.Params.A = DefaultDiscrimination
	if a != nil {
		item.Params.A = *a
	}
	item.Params.C = irt.DefaultGuessing(item.Type)
	if c != nil {
		item.Params.C = *c
	}

	if err := checkParams(item.Params); err != nil {
		return Item{}, err
	}
	return item, nil
}

func checkParams(p irt.Params) error {
	for _, v := range []float64{p.A, p.B, p.C} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite IRT parameter in %+v", p)
		}
	}
	if p.A <= 0 {
		return fmt.Errorf("discrimination must be positive, got %v", p.A)
	}
	if p.C < 0 || p.C >= 1 {
		return fmt.Errorf("guessing must be in [0,1), got %v", p.C)
	}
	return nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
