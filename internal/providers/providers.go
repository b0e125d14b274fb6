// Package providers selects the active carrier binding from configuration.
package providers

import (
	"fmt"

	"campaigner/internal/carrier"
	"campaigner/internal/config"
	"campaigner/internal/providers/twilio"
)

func NewGateway(cfg config.CarrierConfig) (carrier.Gateway, error) {
	switch cfg.Name {
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
			return nil, fmt.Errorf("twilio carrier selected but credentials are not fully configured")
		}
		return twilio.NewGateway(cfg), nil
	default:
		return nil, fmt.Errorf("unknown carrier %q", cfg.Name)
	}
}
