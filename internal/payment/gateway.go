// Package payment wraps the Stripe boundary: creating checkout sessions
// for pending bookings and verifying the asynchronous webhook that
// reports payment completion.  No booking state lives here.
package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// Gateway creates Stripe Checkout sessions.  The booking id travels in
// the session metadata and comes back on the completion webhook, which
// is the only link between a payment and its booking.
type Gateway struct {
	successURL string
	cancelURL  string
	currency   string
}

// NewGateway configures the global Stripe key and returns a Gateway.
func NewGateway(secretKey, successURL, cancelURL, currency string) (*Gateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey
	return &Gateway{successURL: successURL, cancelURL: cancelURL, currency: currency}, nil
}

// CheckoutInput describes the payment to collect for one booking.
type CheckoutInput struct {
	BookingID   uint64
	Ref         string
	AmountCents uint32
	Description string
}

// CreateCheckout opens a checkout session and returns the URL the client
// must be redirected to.  The booking ref doubles as the idempotency
// key, so retrying a failed request cannot open two sessions for the
// same booking.
func (g *Gateway) CreateCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(int64(in.AmountCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingID, strconv.FormatUint(in.BookingID, 10))
	params.AddMetadata("booking_ref", in.Ref)
	params.SetIdempotencyKey("booking-" + in.Ref)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}
