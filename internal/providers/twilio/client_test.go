package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		httpStatus int
		want       bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, 0, true},
		{"transport failure", errors.New("connection refused"), 0, true},
		{"throttled", errors.New("too many requests"), 429, true},
		{"request timeout", errors.New("timeout"), 408, true},
		{"server error", errors.New("internal"), 500, true},
		{"bad gateway", errors.New("bad gateway"), 502, true},
		{"invalid number", errors.New("not a valid phone number"), 400, false},
		{"auth failure", errors.New("authenticate"), 401, false},
		{"not found", errors.New("not found"), 404, false},
		{"clean response", nil, 201, false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err, tc.httpStatus); got != tc.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Error("missing or wrong basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("From"); got != "+15550001111" {
			t.Errorf("From = %q", got)
		}
		if got := r.PostForm.Get("StatusCallback"); got != "https://hooks.example.com/cb" {
			t.Errorf("StatusCallback = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM900","status":"queued"}`))
	}))
	defer srv.Close()

	c := &Client{AccountSID: "AC123", AuthToken: "token", FromNumber: "+15550001111", BaseURL: srv.URL, HTTP: srv.Client()}
	resp, status, err := c.SendSMS(context.Background(), SendRequest{
		To:                "+14155552671",
		Body:              "hello",
		StatusCallbackURL: "https://hooks.example.com/cb",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if status != http.StatusCreated || resp.Sid != "SM900" || resp.Status != "queued" {
		t.Fatalf("unexpected response: %+v status=%d", resp, status)
	}
}

func TestSendSMSErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The 'To' number is not a valid phone number.","code":21211}`))
	}))
	defer srv.Close()

	c := &Client{AccountSID: "AC123", AuthToken: "token", BaseURL: srv.URL, HTTP: srv.Client()}
	_, status, err := c.SendSMS(context.Background(), SendRequest{To: "bad", Body: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if err.Error() != "The 'To' number is not a valid phone number." {
		t.Fatalf("error = %q", err)
	}
}

func TestFetchMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages/SM900.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"sid":"SM900","status":"delivered","price":"-0.0075","price_unit":"USD"}`))
	}))
	defer srv.Close()

	c := &Client{AccountSID: "AC123", AuthToken: "token", BaseURL: srv.URL, HTTP: srv.Client()}
	res, _, err := c.FetchMessage(context.Background(), "SM900")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Status != "delivered" || res.Price != "-0.0075" {
		t.Fatalf("unexpected resource: %+v", res)
	}
}
