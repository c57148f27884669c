package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/reconcile"
)

// FetchProfile returns the server-side profile of userID. A 404 maps to
// profile.ErrNotFound; other failures are *reconcile.Failure.
func (r *Router) FetchProfile(ctx context.Context, userID string) (*profile.ToneProfile, error) {
	res, err := r.callJSON(ctx, CapProfileGet, url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		if res.Failure.Kind == reconcile.Rejected && res.Failure.Status == http.StatusNotFound {
			return nil, profile.ErrNotFound
		}
		return nil, res.Failure
	}

	rec, _ := res.Value.(reconcile.ProfileRecord)
	var p profile.ToneProfile
	if err := json.Unmarshal(rec.Raw, &p); err != nil {
		return nil, &reconcile.Failure{
			Kind:    reconcile.MalformedResponse,
			Message: fmt.Sprintf("decoding profile: %v", err),
		}
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	return &p, nil
}

// CreateProfile stores p on the server.
func (r *Router) CreateProfile(ctx context.Context, p *profile.ToneProfile) error {
	res, err := r.callJSON(ctx, CapProfileCreate, "", p)
	if err != nil {
		return err
	}
	return res.Err()
}
