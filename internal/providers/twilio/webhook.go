package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// Signature computes Twilio's webhook signature: HMAC-SHA1 over the exact
// public URL concatenated with the sorted form keys and values,
// base64-encoded.
func Signature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		// Twilio signs the first value of each key
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it to the
// one the carrier provided.
func VerifySignature(authToken, fullURL, provided string, form url.Values) bool {
	expected := Signature(authToken, fullURL, form)
	return hmac.Equal([]byte(expected), []byte(provided))
}
