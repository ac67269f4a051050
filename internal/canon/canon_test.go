package canon

import "testing"

func TestMarshalParseRoundTrip(t *testing.T) {
	c := Content{Sections: []Section{
		{Title: "Tesla Prize", FAQs: []FAQ{
			{Question: "What is it?", Answer: "An award."},
		}},
	}}

	raw, err := Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Sections) != 1 || got.Sections[0].Title != "Tesla Prize" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse("not: valid: yaml: [")
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExpandSection(t *testing.T) {
	s := Section{Title: "Pricing", FAQs: []FAQ{
		{Question: "How much?", Answer: "$99"},
		{Question: "Discounts?", Answer: "Yes"},
	}}
	got := ExpandSection(s)
	want := "## Pricing\n\n### Q: How much?\n\n$99\n\n### Q: Discounts?\n\nYes"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestOrderPreservedWhenSameScore(t *testing.T) {
	c := Content{Sections: []Section{
		{Title: "A"}, {Title: "B"}, {Title: "C"},
	}}
	raw, _ := Marshal(c)
	got, _ := Parse(raw)
	for i, want := range []string{"A", "B", "C"} {
		if got.Sections[i].Title != want {
			t.Fatalf("section order not preserved: %+v", got.Sections)
		}
	}
}
