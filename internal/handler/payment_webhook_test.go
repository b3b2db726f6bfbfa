package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyushRai7/parkmate/internal/model"
	"github.com/AyushRai7/parkmate/internal/repository"
	"github.com/AyushRai7/parkmate/internal/reservation"
)

const whSecret = "whsec_handler_test"

type stubConfirmer struct {
	booking *model.Booking
	err     error
	calls   int
}

func (s *stubConfirmer) Confirm(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.booking, nil
}

type stubReader struct {
	detail *repository.BookingDetail
	err    error
}

func (s *stubReader) GetDetail(ctx context.Context, id uint64) (*repository.BookingDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func signBody(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", ts, payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(t *testing.T, bookingID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_1",
				"object":   "checkout.session",
				"metadata": map[string]string{"booking_id": bookingID},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(h *WebhookHandler, payload []byte, sig string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	_ = h.Handle(e.NewContext(req, rec))
	return rec
}

func pendingDetail() *repository.BookingDetail {
	return &repository.BookingDetail{ID: 7, Ref: "ref-7", Status: model.StatusPending}
}

func TestWebhookHandle(t *testing.T) {
	t.Run("confirms the booking on checkout completion", func(t *testing.T) {
		conf := &stubConfirmer{booking: &model.Booking{ID: 7, Status: model.StatusConfirmed}}
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: pendingDetail()})

		payload := completedEvent(t, "7")
		rec := postWebhook(h, payload, signBody(payload, whSecret, time.Now()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"confirmed":true`)
		assert.Equal(t, 1, conf.calls)
	})

	t.Run("bad signature is not acknowledged", func(t *testing.T) {
		conf := &stubConfirmer{}
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: pendingDetail()})

		payload := completedEvent(t, "7")
		rec := postWebhook(h, payload, signBody(payload, "whsec_wrong", time.Now()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, conf.calls)
	})

	t.Run("unrelated event types are acknowledged untouched", func(t *testing.T) {
		conf := &stubConfirmer{}
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: pendingDetail()})

		payload, err := json.Marshal(map[string]interface{}{
			"id":   "evt_2",
			"type": "payment_intent.created",
			"data": map[string]interface{}{"object": map[string]interface{}{}},
		})
		require.NoError(t, err)
		rec := postWebhook(h, payload, signBody(payload, whSecret, time.Now()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, conf.calls)
	})

	t.Run("expired booking is acknowledged without a slot", func(t *testing.T) {
		conf := &stubConfirmer{err: reservation.ErrBookingExpired}
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: pendingDetail()})

		payload := completedEvent(t, "7")
		rec := postWebhook(h, payload, signBody(payload, whSecret, time.Now()))

		// Acknowledge so the gateway stops retrying a payment that can
		// never land a slot; reconciliation happens out of band.
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"confirmed":false`)
	})

	t.Run("duplicate delivery short-circuits before the engine", func(t *testing.T) {
		conf := &stubConfirmer{}
		n := uint32(3)
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: &repository.BookingDetail{
			ID: 7, Ref: "ref-7", Status: model.StatusConfirmed, SlotNumber: &n,
		}})

		payload := completedEvent(t, "7")
		rec := postWebhook(h, payload, signBody(payload, whSecret, time.Now()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, conf.calls)
	})

	t.Run("transient engine failure asks for a retry", func(t *testing.T) {
		conf := &stubConfirmer{err: context.DeadlineExceeded}
		h := NewWebhookHandler(whSecret, conf, &stubReader{detail: pendingDetail()})

		payload := completedEvent(t, "7")
		rec := postWebhook(h, payload, signBody(payload, whSecret, time.Now()))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
