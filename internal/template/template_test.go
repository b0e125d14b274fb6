package template

import "testing"

func TestRender(t *testing.T) {
	body := "Hi {first_name}, your offer for {product} expires soon."
	got := Render(body, map[string]string{"first_name": "Ada", "product": "fiber"})
	want := "Hi Ada, your offer for fiber expires soon."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderUnknownPlaceholderLeftVerbatim(t *testing.T) {
	body := "Hi {first_name}, ref {mystery_var}."
	got := Render(body, map[string]string{"first_name": "Ada"})
	want := "Hi Ada, ref {mystery_var}."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderNoVars(t *testing.T) {
	body := "Static reminder."
	if got := Render(body, nil); got != body {
		t.Fatalf("got %q, want %q", got, body)
	}
}
