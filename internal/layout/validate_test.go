package layout

import (
	"strings"
	"testing"
)

func TestValidateCleanDocument(t *testing.T) {
	doc := `{"width": 800, "height": 480, "widgets": [{"id": "a", "type": "header", "position": {"x": 0, "y": 0, "w": 12, "h": 1}, "config": {"title": "Home"}}]}`
	if got := Validate([]byte(doc)); got != nil {
		t.Fatalf("expected no warnings, got %v", got)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	doc := `{"width": -1, "widgets": [{"id": "a", "type": "bogus"}, {"id": "a", "type": "todo"}, {"type": "todo"}]}`
	got := Validate([]byte(doc))
	joined := strings.Join(got, "\n")
	for _, want := range []string{"/width", "/widgets/0/type", "duplicate widget id \"a\"", "/widgets/2"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning mentioning %q in:\n%s", want, joined)
		}
	}
	if _, err := Parse([]byte(doc)); err != nil {
		t.Fatalf("lint findings must not block parsing: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	got := Validate([]byte(`{`))
	if len(got) != 1 || !strings.HasPrefix(got[0], "document is not valid JSON") {
		t.Fatalf("unexpected result %v", got)
	}
}
