package twilio

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"campaigner/internal/carrier"
	"campaigner/internal/config"
	"campaigner/internal/observability"
)

// Gateway is the Twilio binding of carrier.Gateway. Every send passes the
// per-process rate limiter and the circuit breaker before it reaches the
// wire; failures the breaker or ShouldRetry recognize come back as
// carrier.TransientError.
type Gateway struct {
	Client  *Client
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

func NewGateway(cfg config.CarrierConfig) *Gateway {
	return &Gateway{
		Client: &Client{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			BaseURL:    cfg.TwilioBaseURL,
			HTTP:       &http.Client{Timeout: 8 * time.Second},
		},
		Limiter: rate.NewLimiter(rate.Limit(cfg.TwilioRPS), cfg.TwilioBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "twilio",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
	}
}

func (g *Gateway) Sender() string { return g.Client.FromNumber }

func (g *Gateway) Send(ctx context.Context, to, body, callbackURL string) (carrier.Submission, error) {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return carrier.Submission{}, &carrier.TransientError{Err: err}
		}
	}

	start := time.Now()
	resAny, err := g.execute(func() (any, error) {
		resp, httpStatus, callErr := g.Client.SendSMS(ctx, SendRequest{
			To:                to,
			Body:              body,
			StatusCallbackURL: callbackURL,
		})
		if callErr != nil {
			return nil, callError{err: callErr, httpStatus: httpStatus}
		}
		return sendResult{resp: resp, httpStatus: httpStatus}, nil
	})
	observability.CarrierLatency.Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.CarrierSend.WithLabelValues("cb_open", "0").Inc()
		return carrier.Submission{}, &carrier.TransientError{Err: err}
	}
	if err != nil {
		var ce callError
		httpStatus := 0
		if errors.As(err, &ce) {
			httpStatus = ce.httpStatus
		}
		observability.CarrierSend.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()
		if ShouldRetry(err, httpStatus) {
			return carrier.Submission{}, &carrier.TransientError{Err: err}
		}
		return carrier.Submission{}, err
	}

	r := resAny.(sendResult)
	observability.CarrierSend.WithLabelValues("ok", strconv.Itoa(r.httpStatus)).Inc()
	return carrier.Submission{ExternalID: r.resp.Sid, Status: r.resp.Status}, nil
}

func (g *Gateway) FetchStatus(ctx context.Context, externalID string) (carrier.DeliveryStatus, error) {
	res, httpStatus, err := g.Client.FetchMessage(ctx, externalID)
	if err != nil {
		if ShouldRetry(err, httpStatus) {
			return carrier.DeliveryStatus{}, &carrier.TransientError{Err: err}
		}
		return carrier.DeliveryStatus{}, err
	}

	out := carrier.DeliveryStatus{
		ExternalID:   res.Sid,
		Status:       res.Status,
		ErrorMessage: res.ErrorMessage,
	}
	if res.ErrorCode != nil {
		out.ErrorCode = strconv.Itoa(*res.ErrorCode)
	}
	// Twilio reports price as a negative decimal string (a debit).
	if res.Price != "" {
		if p, perr := strconv.ParseFloat(res.Price, 64); perr == nil {
			p = math.Abs(p)
			out.Cost = &p
		}
	}
	return out, nil
}

func (g *Gateway) execute(call func() (any, error)) (any, error) {
	if g.Breaker == nil {
		return call()
	}
	return g.Breaker.Execute(call)
}

type sendResult struct {
	resp       SendResponse
	httpStatus int
}

type callError struct {
	err        error
	httpStatus int
}

func (e callError) Error() string { return e.err.Error() }
func (e callError) Unwrap() error { return e.err }
