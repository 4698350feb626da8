package codec

import (
	"strings"
	"testing"

	"treeline/internal/engine/graph"
)

func TestDecode_FrontmatterAndLinks(t *testing.T) {
	content := `---
color: #aabbcc
position:
  x: 12.5
  y: -3
created_at: 2024-01-02
---
# Grocery run
Remember the market.
- relates_to [[tasks/shopping]]
[[home]]
`
	doc := Decode([]byte(content))

	if doc.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", doc.ParseError)
	}
	if doc.Color != "#aabbcc" {
		t.Errorf("expected color #aabbcc, got %q", doc.Color)
	}
	if doc.Position == nil || doc.Position.X != 12.5 || doc.Position.Y != -3 {
		t.Errorf("unexpected position: %+v", doc.Position)
	}
	if doc.Title != "Grocery run" {
		t.Errorf("expected title from heading, got %q", doc.Title)
	}
	if len(doc.Extra) != 1 || doc.Extra[0].Key != "created_at" || doc.Extra[0].Value != "2024-01-02" {
		t.Errorf("unexpected extra fields: %+v", doc.Extra)
	}
	wantLinks := []graph.Link{
		{Text: "tasks/shopping", Label: "relates_to"},
		{Text: "home", Label: ""},
	}
	if len(doc.Links) != len(wantLinks) {
		t.Fatalf("expected %d links, got %v", len(wantLinks), doc.Links)
	}
	for i, w := range wantLinks {
		if doc.Links[i] != w {
			t.Errorf("link %d: want %+v, got %+v", i, w, doc.Links[i])
		}
	}
	if strings.Contains(doc.Body, "[[") {
		t.Errorf("link lines should be stripped from body, got %q", doc.Body)
	}
	if !strings.Contains(doc.Body, "Remember the market.") {
		t.Errorf("body lost content: %q", doc.Body)
	}
}

func TestDecode_FrontmatterTitleWins(t *testing.T) {
	content := "---\ntitle: From frontmatter\n---\n# From heading\n"
	doc := Decode([]byte(content))
	if doc.Title != "From frontmatter" {
		t.Errorf("expected frontmatter title to win, got %q", doc.Title)
	}
}

func TestDecode_MalformedFrontmatterDoesNotFail(t *testing.T) {
	content := "---\ncolor: [unclosed\n---\nbody text\n"
	doc := Decode([]byte(content))
	if doc.ParseError == "" {
		t.Error("expected a parse-error marker")
	}
	if !strings.Contains(doc.Body, "body text") {
		t.Errorf("body should survive malformed frontmatter, got %q", doc.Body)
	}
}

func TestDecode_NoFrontmatter(t *testing.T) {
	doc := Decode([]byte("just a note\nsee [[other]] inline\n"))
	if doc.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", doc.ParseError)
	}
	if len(doc.Links) != 1 || doc.Links[0].Text != "other" || doc.Links[0].Label != "" {
		t.Errorf("unexpected links: %v", doc.Links)
	}
	if !strings.Contains(doc.Body, "see [[other]] inline") {
		t.Errorf("inline link lines must stay in the body, got %q", doc.Body)
	}
}

func TestDecode_EmptyFrontmatterBlock(t *testing.T) {
	doc := Decode([]byte("---\n---\nbody text\n"))
	if doc.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", doc.ParseError)
	}
	if strings.Contains(doc.Body, "---") {
		t.Errorf("fence must not leak into the body, got %q", doc.Body)
	}
	if !strings.Contains(doc.Body, "body text") {
		t.Errorf("body lost content: %q", doc.Body)
	}

	// Without a trailing body the note is just empty.
	doc = Decode([]byte("---\n---"))
	if doc.Body != "" || doc.ParseError != "" {
		t.Errorf("expected empty note, got body=%q err=%q", doc.Body, doc.ParseError)
	}
}

func TestDecode_IgnoresDuplicateLinks(t *testing.T) {
	doc := Decode([]byte("[[a]]\n[[a]]\n"))
	if len(doc.Links) != 1 {
		t.Errorf("expected deduplicated links, got %v", doc.Links)
	}
}

func TestEncode_NoFrontmatterWhenNoFieldsSet(t *testing.T) {
	n := &graph.Node{ID: "plain", Body: "text"}
	out := string(Encode(n))
	if strings.HasPrefix(out, "---") {
		t.Errorf("expected no frontmatter, got %q", out)
	}
}

func TestEncode_KeepsRawLinkText(t *testing.T) {
	n := &graph.Node{
		ID:   "src",
		Body: "body",
		Edges: []graph.Edge{
			{TargetID: "folder/b", Label: "relates_to", Text: "b.md"},
			{TargetID: "c"},
		},
	}
	out := string(Encode(n))
	if !strings.Contains(out, "- relates_to [[b.md]]") {
		t.Errorf("saving must not rewrite the user's link spelling, got %q", out)
	}
	if !strings.Contains(out, "[[c]]") {
		t.Errorf("edges without raw text fall back to the id, got %q", out)
	}
}

func TestRoundTrip(t *testing.T) {
	n := &graph.Node{
		ID:    "notes/a",
		Body:  "# Title\nSome body.",
		Color: "#ff0000",
		Position: &graph.Position{
			X: 100,
			Y: 250.5,
		},
		Edges: []graph.Edge{
			{TargetID: "notes/b", Label: "relates_to"},
			{TargetID: "c", Label: ""},
		},
		Unresolved: []graph.Link{{Text: "missing/note", Label: "blocked_by"}},
		Extra: []graph.Field{
			{Key: "created_at", Value: "2024-06-01T10:00:00"},
			{Key: "weird", Value: "value: with colon"},
		},
		IsContext: true,
	}

	doc := Decode(Encode(n))

	if doc.ParseError != "" {
		t.Fatalf("round trip produced parse error: %s", doc.ParseError)
	}
	if doc.Body != n.Body {
		t.Errorf("body mismatch: want %q, got %q", n.Body, doc.Body)
	}
	if doc.Color != n.Color {
		t.Errorf("color mismatch: want %q, got %q", n.Color, doc.Color)
	}
	if doc.Position == nil || *doc.Position != *n.Position {
		t.Errorf("position mismatch: %+v", doc.Position)
	}
	if !doc.IsContext {
		t.Error("context flag lost")
	}
	if len(doc.Extra) != len(n.Extra) {
		t.Fatalf("extra mismatch: %+v", doc.Extra)
	}
	for i := range n.Extra {
		if doc.Extra[i] != n.Extra[i] {
			t.Errorf("extra %d: want %+v, got %+v", i, n.Extra[i], doc.Extra[i])
		}
	}

	// Edge ids (resolved and unresolved) survive as a set.
	want := map[string]bool{"notes/b": true, "c": true, "missing/note": true}
	got := make(map[string]bool)
	for _, l := range doc.Links {
		got[l.Text] = true
	}
	if len(got) != len(want) {
		t.Fatalf("link set mismatch: %v", doc.Links)
	}
	for k := range want {
		if !got[k] {
			t.Errorf("missing link %q after round trip", k)
		}
	}

	// Labels survive too.
	for _, l := range doc.Links {
		switch l.Text {
		case "notes/b":
			if l.Label != "relates_to" {
				t.Errorf("label lost for notes/b: %+v", l)
			}
		case "missing/note":
			if l.Label != "blocked_by" {
				t.Errorf("label lost for missing/note: %+v", l)
			}
		}
	}
}

func TestRoundTrip_IsStableAcrossCycles(t *testing.T) {
	content := "---\ncolor: #00ff00\n---\nbody\n[[a]]\n"
	doc1 := Decode([]byte(content))
	n := &graph.Node{ID: "x", Body: doc1.Body, Color: doc1.Color, Unresolved: doc1.Links, Extra: doc1.Extra}
	doc2 := Decode(Encode(n))
	if doc2.Body != doc1.Body || doc2.Color != doc1.Color || len(doc2.Links) != len(doc1.Links) {
		t.Errorf("second cycle diverged: %+v vs %+v", doc2, doc1)
	}
}
