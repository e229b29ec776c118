package refs

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"none", "plain text without references", nil},
		{"single", "linked to [[Side Projects]] today", []string{"Side Projects"}},
		{"dedup", "[[Work]] and again [[Work]]", []string{"Work"}},
		{"alias", "see [[work|the office]]", []string{"work"}},
		{"empty brackets", "broken [[]] reference", nil},
		{"multiple", "[[A]] then [[B]]", []string{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"work", "Work"},
		{"side-projects", "Side Projects"},
		{"deep_focus", "Deep Focus"},
		{"already Title", "Already Title"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewrite(t *testing.T) {
	content := "Working on [[Side Projects]] and [[side projects]], not [[Side Project]]."
	got, changed := Rewrite(content, "side-projects", "experiments")
	if !changed {
		t.Fatal("Rewrite reported no change")
	}
	want := "Working on [[Experiments]] and [[Experiments]], not [[Side Project]]."
	if got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}

func TestRewriteNoMatch(t *testing.T) {
	content := "Nothing relevant here."
	got, changed := Rewrite(content, "work", "office")
	if changed || got != content {
		t.Errorf("Rewrite changed content without a match: %q", got)
	}
}

func TestRewriteEscapesSpecialCharacters(t *testing.T) {
	// A display form containing regexp metacharacters must match literally.
	content := "see [[C++ Notes]]"
	got, changed := Rewrite(content, "c++ notes", "cpp")
	if !changed {
		t.Fatal("Rewrite reported no change")
	}
	if got != "see [[Cpp]]" {
		t.Errorf("Rewrite = %q", got)
	}
}
