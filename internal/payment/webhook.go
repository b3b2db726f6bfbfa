package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails the
// signature check.  Such requests must not be acknowledged as processed;
// the gateway will redeliver.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventCheckoutCompleted is the Stripe event delivered when a checkout
// session finishes successfully.
const EventCheckoutCompleted = "checkout.session.completed"

const metadataBookingID = "booking_id"

// VerifyEvent checks the Stripe-Signature header against the shared
// webhook secret and returns the parsed event.  Any verification or
// parse failure maps to ErrInvalidSignature so callers treat the payload
// as untrusted without inspecting stripe internals.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		// The account's webhook endpoint may run an older Events API
		// version than this SDK; the fields read here are stable.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ev, nil
}

// CompletedBookingID extracts the booking id from a
// checkout.session.completed event.  ok is false when the event is of a
// different type and should be acknowledged without action.
func CompletedBookingID(ev stripe.Event) (bookingID uint64, ok bool, err error) {
	if string(ev.Type) != EventCheckoutCompleted {
		return 0, false, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return 0, false, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	raw, present := sess.Metadata[metadataBookingID]
	if !present || raw == "" {
		return 0, false, fmt.Errorf("completion event has no %s metadata", metadataBookingID)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false, fmt.Errorf("bad %s metadata %q", metadataBookingID, raw)
	}
	return id, true, nil
}
