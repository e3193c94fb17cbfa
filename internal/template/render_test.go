package template

import "testing"

func TestRenderSubstitutesKnownKeys(t *testing.T) {
	got := Render("Hello {{name}}, your event is {{event}}.", map[string]string{
		"name":  "Ana",
		"event": "Bass Wars",
	})
	want := "Hello Ana, your event is Bass Wars."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderLeavesUnknownKeysVerbatim(t *testing.T) {
	got := Render("Hi {{name}}, ref {{ref}}", map[string]string{"name": "Bo"})
	want := "Hi Bo, ref {{ref}}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderHandlesWhitespaceInTokens(t *testing.T) {
	got := Render("x {{ name }} y", map[string]string{"name": "Z"})
	if got != "x Z y" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderEmptyVarsIsIdentity(t *testing.T) {
	in := "Hello {{name}}"
	if got := Render(in, nil); got != in {
		t.Fatalf("got %q, want input unchanged", got)
	}
}

func TestRenderIsPure(t *testing.T) {
	vars := map[string]string{"a": "1"}
	first := Render("{{a}}{{b}}", vars)
	second := Render("{{a}}{{b}}", vars)
	if first != second {
		t.Fatalf("render not deterministic: %q vs %q", first, second)
	}
}

func TestRenderContent(t *testing.T) {
	c := RenderContent("Welcome {{name}}", "Hello {{name}}!", map[string]string{"name": "Ana"})
	if c.Subject != "Welcome Ana" || c.Body != "Hello Ana!" {
		t.Fatalf("unexpected content: %+v", c)
	}
}
