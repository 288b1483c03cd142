package webhook

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
)

// WebXPay posts form-encoded IPN callbacks. The checksum field is the hex
// SHA-256 over the pipe-joined core fields plus the merchant secret.
func webXPayChecksum(orderID, paymentID, statusCode, amount, secret string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{orderID, paymentID, statusCode, amount, secret}, "|")))
	return hex.EncodeToString(sum[:])
}

func (s *Server) handleWebXPay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const provider = model.ProviderWebXPay

	secret, ok := s.registry.WebhookSecret(provider)
	if !ok {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	orderID := r.PostFormValue("order_id")
	paymentID := r.PostFormValue("payment_id")
	statusCode := r.PostFormValue("status_code")
	amount := r.PostFormValue("amount")

	want := webXPayChecksum(orderID, paymentID, statusCode, amount, secret)
	got := strings.ToLower(r.PostFormValue("signature"))
	if paymentID == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		s.reject(w, string(provider), &domain.SignatureVerificationError{Provider: string(provider), Reason: "checksum mismatch"})
		return
	}

	if !s.allow(w, string(provider), categoryWebhook) {
		return
	}

	ev := &model.ProviderEvent{
		Provider: provider,
		// payment_id is shared between success and failure callbacks for one
		// attempt, which is what lets a later success repair a recorded
		// failure instead of inserting a second row.
		EventID:    paymentID,
		CustomerID: r.PostFormValue("customer_id"),
		SubjectID:  r.PostFormValue("custom_fields"),
		Amount:     amountToCents(amount),
		Currency:   strings.ToLower(r.PostFormValue("currency")),
		OccurredAt: time.Now().UTC(),
		RawPayload: []byte(r.PostForm.Encode()),
	}

	switch statusCode {
	case "0":
		ev.Action = model.ActionPaymentSucceeded
	case "2":
		ev.Action = model.ActionPaymentFailed
	default:
		// Pending and informational callbacks are acknowledged untouched.
		ev.Action = model.ActionIgnore
	}

	s.applyPayment(w, r, ev, start)
}

// amountToCents parses WebXPay's decimal amount string ("1500.00") into
// minor units. Unparseable input yields zero rather than a rejection since
// the checksum already covered the raw field.
func amountToCents(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}
