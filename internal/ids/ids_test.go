package ids

import "testing"

func TestForSourceURLDeterministic(t *testing.T) {
	a := ForSourceURL("http://x/widget")
	b := ForSourceURL("http://x/widget")
	if a != b {
		t.Fatalf("expected deterministic id, got %s and %s", a, b)
	}
	c := ForSourceURL("http://x/other")
	if a == c {
		t.Fatalf("expected different ids for different URLs")
	}
}

func TestForSectionStable(t *testing.T) {
	a := ForSection("http://x/widget", 0)
	b := ForSection("http://x/widget", 0)
	c := ForSection("http://x/widget", 1)
	if a != b {
		t.Fatalf("expected same section id across calls")
	}
	if a == c {
		t.Fatalf("expected different ids for different sections")
	}
}

func TestSectionLink(t *testing.T) {
	got := SectionLink("http://x/widget", "Pricing Plans")
	want := "http://x/widget#Pricing_Plans"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestRepoSlug(t *testing.T) {
	cases := map[string]string{
		"https://github.com/tursodatabase/turso":     "tursodatabase-turso",
		"https://github.com/tursodatabase/turso.git": "tursodatabase-turso",
	}
	for in, want := range cases {
		if got := RepoSlug(in); got != want {
			t.Errorf("RepoSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
