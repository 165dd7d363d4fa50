// Package payments wraps stripe-go for wallet top-ups. It sits strictly
// outside the core: ride settlement moves wallet balances only, and this
// gateway is consulted solely by the top-up HTTP handler when a Stripe
// key is configured.
package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

type StripeGateway struct{}

// NewStripeGateway initializes the stripe client with the given API key.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// CollectTopUp creates and immediately captures a PaymentIntent for a
// wallet top-up. Amount is in the smallest currency unit.
func (s *StripeGateway) CollectTopUp(ctx context.Context, amount int64, currency, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	if _, err := paymentintent.Capture(pi.ID, nil); err != nil {
		return pi.ID, err
	}
	return pi.ID, nil
}

// Refund releases a held PaymentIntent that was never captured.
func (s *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
