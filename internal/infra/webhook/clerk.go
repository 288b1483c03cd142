package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/infra/logging"
	"saas-billing-backend/internal/infra/metrics"
)

type clerkEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// handleClerk ingests identity events. Clerk delivers through Svix, so
// verification delegates to the svix library's header scheme (svix-id,
// svix-timestamp, svix-signature).
func (s *Server) handleClerk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const provider = "clerk"

	if s.identitySecret == "" {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	wh, err := svix.NewWebhook(s.identitySecret)
	if err != nil {
		s.log.Error().Err(err).Msg("identity webhook secret malformed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := wh.Verify(payload, r.Header); err != nil {
		s.reject(w, provider, &domain.SignatureVerificationError{Provider: provider, Reason: err.Error()})
		return
	}

	if !s.allow(w, provider, categoryIdentity) {
		return
	}

	var env clerkEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warn().Err(err).Msg("clerk payload decode failed")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	ev := mapClerkEvent(&env)
	ctx := logging.WithProvider(logging.WithEventID(r.Context(), r.Header.Get("svix-id")), provider)
	l := logging.With(ctx, s.log)

	if ev.Action == model.ActionIgnore {
		l.Debug().Str("type", env.Type).Msg("identity event type ignored")
		s.ack(w, provider, "ignored", start)
		return
	}

	if _, err := s.users.ApplyIdentityEvent(ctx, ev); err != nil {
		l.Error().Err(err).Msg("identity event apply failed")
		metrics.IncWebhookEvent(provider, "error")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	s.ack(w, provider, "applied", start)
}

func mapClerkEvent(env *clerkEnvelope) *model.IdentityEvent {
	ev := &model.IdentityEvent{
		SubjectID:  env.Data.ID,
		Name:       joinName(env.Data.FirstName, env.Data.LastName),
		OccurredAt: time.Now().UTC(),
	}
	if len(env.Data.EmailAddresses) > 0 {
		ev.Email = env.Data.EmailAddresses[0].EmailAddress
	}

	switch env.Type {
	case "user.created":
		ev.Action = model.ActionUserCreated
	case "user.updated":
		ev.Action = model.ActionUserUpdated
	default:
		ev.Action = model.ActionIgnore
	}
	return ev
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
