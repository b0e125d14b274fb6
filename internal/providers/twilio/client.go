package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	AccountSID string
	AuthToken  string
	HTTP       *http.Client

	FromNumber string
	BaseURL    string
}

type SendRequest struct {
	To                string
	Body              string
	StatusCallbackURL string
}

type SendResponse struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode *int   `json:"error_code"`
	Message   string `json:"message"`
}

type MessageResource struct {
	Sid          string `json:"sid"`
	Status       string `json:"status"`
	Price        string `json:"price"`
	PriceUnit    string `json:"price_unit"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"`
}

func (c *Client) endpoint(path string) string {
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return baseURL + "/2010-04-01/Accounts/" + c.AccountSID + path
}

func (c *Client) SendSMS(ctx context.Context, req SendRequest) (SendResponse, int, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", c.FromNumber)
	form.Set("Body", req.Body)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
	}

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/Messages.json"), strings.NewReader(form.Encode()))
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	// Twilio returns 201 for created; treat 2xx as success
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return out, resp.StatusCode, errors.New(out.Message)
		}
		return out, resp.StatusCode, errors.New("twilio send failed")
	}
	return out, resp.StatusCode, nil
}

func (c *Client) FetchMessage(ctx context.Context, sid string) (MessageResource, int, error) {
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/Messages/"+sid+".json"), nil)
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return MessageResource{}, 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out MessageResource
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return out, resp.StatusCode, errors.New(out.Message)
		}
		return out, resp.StatusCode, errors.New("twilio fetch message failed")
	}
	return out, resp.StatusCode, nil
}

// ShouldRetry classifies transport and HTTP failures as retryable or not.
func ShouldRetry(err error, httpStatus int) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return true
		}
		if httpStatus == 0 {
			// transport-level failure with no response
			return true
		}
	}
	if httpStatus == 429 || httpStatus == 408 {
		return true
	}
	if httpStatus >= 500 && httpStatus <= 599 {
		return true
	}
	return false
}
