package topics

import "testing"

func sampleTopics() []Topic {
	return []Topic{
		{Key: "math.fractions", Name: "Fractions", Weight: 2},
		{Key: "math.algebra", Name: "Algebra", Weight: 3},
		{Key: "verbal.analogies", Subject: "verbal", Weight: 1},
		{Key: "logic"},
	}
}

func TestNewCatalog_OrderAndSubjects(t *testing.T) {
	c, err := NewCatalog(sampleTopics())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	keys := c.Keys()
	want := []string{"logic", "math.algebra", "math.fractions", "verbal.analogies"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if got := c.SubjectFor("math.algebra"); got != "math" {
		t.Errorf("SubjectFor(math.algebra) = %q, want math", got)
	}
	if got := c.SubjectFor("logic"); got != "logic" {
		t.Errorf("SubjectFor(logic) = %q, want logic", got)
	}
	if got := c.SubjectFor("chem.bonds"); got != "chem" {
		t.Errorf("SubjectFor(unmapped) = %q, want chem", got)
	}

	if got := len(c.BySubject("math")); got != 2 {
		t.Errorf("BySubject(math) has %d topics, want 2", got)
	}
	subjects := c.Subjects()
	if len(subjects) != 3 || subjects[0] != "logic" || subjects[2] != "verbal" {
		t.Errorf("Subjects() = %v", subjects)
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		topics []Topic
	}{
		{"missing key", []Topic{{Name: "nameless"}}},
		{"negative weight", []Topic{{Key: "a", Weight: -1}}},
		{"duplicate", []Topic{{Key: "a"}, {Key: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.topics); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTopic_DisplayName(t *testing.T) {
	if got := (Topic{Key: "k"}).DisplayName(); got != "k" {
		t.Errorf("DisplayName() = %q, want k", got)
	}
	if got := (Topic{Key: "k", Name: "Kay"}).DisplayName(); got != "Kay" {
		t.Errorf("DisplayName() = %q, want Kay", got)
	}
}

func TestCatalog_WeightTable(t *testing.T) {
	c, err := NewCatalog(sampleTopics())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	tbl := c.WeightTable(1.5)
	if got := tbl.Weight("math.algebra"); got != 3 {
		t.Errorf("Weight(math.algebra) = %v, want 3", got)
	}
	if got := tbl.Weight("logic"); got != 1.5 {
		t.Errorf("Weight(logic) = %v, want default 1.5", got)
	}
	if got := tbl.Subject("verbal.analogies"); got != "verbal" {
		t.Errorf("Subject(verbal.analogies) = %q, want verbal", got)
	}
}
