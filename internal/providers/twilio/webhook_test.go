package twilio

import (
	"net/url"
	"testing"
)

func TestSignatureRoundtrip(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "delivered")
	form.Set("Price", "-0.0075")

	fullURL := "https://hooks.example.com/v1/webhooks/twilio/status"
	sig := Signature("token", fullURL, form)
	if sig == "" {
		t.Fatal("empty signature")
	}
	if !VerifySignature("token", fullURL, sig, form) {
		t.Fatal("signature did not verify against itself")
	}
}

func TestSignatureKnownVector(t *testing.T) {
	// Worked example from Twilio's security docs.
	form := url.Values{}
	form.Set("CallSid", "CA1234567890ABCDE")
	form.Set("Caller", "+14158675310")
	form.Set("Digits", "1234")
	form.Set("From", "+14158675310")
	form.Set("To", "+18005551212")

	sig := Signature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", form)
	if sig != "GvWf1cFY/Q7PnoempGyD5oXAezc=" {
		t.Fatalf("signature mismatch: %s", sig)
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "delivered")

	fullURL := "https://hooks.example.com/v1/webhooks/twilio/status"
	sig := Signature("token", fullURL, form)

	form.Set("MessageStatus", "failed")
	if VerifySignature("token", fullURL, sig, form) {
		t.Fatal("tampered form accepted")
	}

	form.Set("MessageStatus", "delivered")
	if VerifySignature("other-token", fullURL, sig, form) {
		t.Fatal("wrong auth token accepted")
	}
	if VerifySignature("token", "https://elsewhere.example.com/hook", sig, form) {
		t.Fatal("wrong URL accepted")
	}
	if VerifySignature("token", fullURL, "", form) {
		t.Fatal("empty signature accepted")
	}
}
