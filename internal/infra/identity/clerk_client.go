package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/domain/ports/adapter"
)

var _ adapter.IdentitySyncer = (*ClerkClient)(nil)

// ClerkClient pushes plan metadata onto the Clerk user record so the
// frontend can gate features from the session token alone. The call is
// best-effort: it runs after the billing transaction has committed.
type ClerkClient struct {
	secretKey string
	apiBase   string
	client    *http.Client
}

func NewClerkClient(secretKey, apiBase string) (*ClerkClient, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("clerk: %w", domain.ErrNotConfigured)
	}
	if apiBase == "" {
		apiBase = "https://api.clerk.com/v1"
	}
	return &ClerkClient{
		secretKey: secretKey,
		apiBase:   apiBase,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// SyncPlan PATCHes the user's public metadata with the current plan tier.
func (c *ClerkClient) SyncPlan(ctx context.Context, subjectID string, tier model.PlanTier) error {
	payload := map[string]any{
		"public_metadata": map[string]any{
			"plan": string(tier),
		},
	}
	b, _ := json.Marshal(payload)

	endpoint := fmt.Sprintf("%s/users/%s/metadata", c.apiBase, url.PathEscape(subjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clerk metadata update http %d", resp.StatusCode)
	}
	return nil
}
