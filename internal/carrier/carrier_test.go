package carrier

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeSubmitStatus(t *testing.T) {
	cases := map[string]string{
		"queued":   "sent",
		"sending":  "sent",
		"accepted": "sent",
		"sent":     "sent",
		"":         "failed",
		"failed":   "failed",
	}
	for in, want := range cases {
		if got := NormalizeSubmitStatus(in); got != want {
			t.Fatalf("NormalizeSubmitStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapDeliveryStatus(t *testing.T) {
	cases := map[string]string{
		"failed":      "failed",
		"undelivered": "failed",
		"canceled":    "failed",
		"delivered":   "delivered",
		"queued":      "sent",
		"sending":     "sent",
		"sent":        "sent",
	}
	for in, want := range cases {
		if got := MapDeliveryStatus(in); got != want {
			t.Fatalf("MapDeliveryStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	base := errors.New("connection reset")
	if IsTransient(base) {
		t.Fatal("plain error should not be transient")
	}
	te := &TransientError{Err: base}
	if !IsTransient(te) {
		t.Fatal("TransientError should be transient")
	}
	wrapped := fmt.Errorf("send: %w", te)
	if !IsTransient(wrapped) {
		t.Fatal("wrapped TransientError should be transient")
	}
	if !errors.Is(te, base) {
		t.Fatal("TransientError should unwrap to its cause")
	}
}
