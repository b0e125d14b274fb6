// mock-carrier is a local stand-in for the Twilio messages API: it accepts
// sends, assigns fake sids, and (optionally) fires a signed delivery
// callback at CALLBACK_URL a moment later. For development and manual
// testing only.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"campaigner/internal/logging"
	"campaigner/internal/providers/twilio"
)

type message struct {
	Sid    string `json:"sid"`
	To     string `json:"to"`
	Body   string `json:"body"`
	Status string `json:"status"`
	Price  string `json:"price"`
}

func main() {
	logging.Init("mock-carrier", os.Getenv("LOG_FORMAT"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "4010"
	}
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	callbackURL := os.Getenv("CALLBACK_URL")

	var mu sync.Mutex
	messages := map[string]*message{}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /2010-04-01/Accounts/{account}/Messages.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		m := &message{
			Sid:    "SM" + randomHex(16),
			To:     r.PostForm.Get("To"),
			Body:   r.PostForm.Get("Body"),
			Status: "queued",
			Price:  "-0.0075",
		}
		mu.Lock()
		messages[m.Sid] = m
		mu.Unlock()

		slog.Info("accepted message", "sid", m.Sid, "to", m.To)

		if callbackURL != "" {
			go func() {
				time.Sleep(2 * time.Second)
				mu.Lock()
				m.Status = "delivered"
				mu.Unlock()
				fireCallback(callbackURL, authToken, m)
			}()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(m)
	})

	mux.HandleFunc("GET /2010-04-01/Accounts/{account}/Messages/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSuffix(r.PathValue("sid"), ".json")
		mu.Lock()
		m, ok := messages[sid]
		mu.Unlock()
		if !ok {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m)
	})

	slog.Info("mock carrier listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("mock carrier failed", "err", err)
		os.Exit(1)
	}
}

func fireCallback(callbackURL, authToken string, m *message) {
	form := url.Values{}
	form.Set("MessageSid", m.Sid)
	form.Set("MessageStatus", m.Status)
	form.Set("Price", m.Price)

	sig := twilio.Signature(authToken, callbackURL, form)
	req, _ := http.NewRequest(http.MethodPost, callbackURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("callback failed", "sid", m.Sid, "err", err)
		return
	}
	resp.Body.Close()
	slog.Info("callback delivered", "sid", m.Sid, "status", m.Status, "http_status", resp.StatusCode)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
