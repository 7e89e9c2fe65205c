package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/admingate/internal/model"
	"github.com/ppiankov/admingate/internal/store"
)

// dispatch executes the named operation against the document store using
// only schema-approved fields and the verified actor identity.
func (g *Gateway) dispatch(ctx context.Context, op model.Operation, actor model.Identity, payload map[string]any) (map[string]any, error) {
	switch op {
	case model.OpVerifyAdmin:
		return map[string]any{
			"success":  true,
			"adminUid": actor.SubjectID,
		}, nil

	case model.OpListUsers:
		users, err := g.store.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway: list users: %w", err)
		}
		return map[string]any{
			"success": true,
			"users":   users,
		}, nil

	case model.OpBanUser:
		ban := store.UserBan{
			BanID:        "ban-" + g.newID(),
			UserID:       payload["userId"].(string),
			Reason:       payload["reason"].(string),
			DurationDays: payload["duration"].(int64),
			ActorID:      actor.SubjectID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := g.store.InsertUserBan(ctx, ban); err != nil {
			return nil, fmt.Errorf("gateway: ban user: %w", err)
		}
		return map[string]any{
			"success": true,
			"banId":   ban.BanID,
		}, nil

	case model.OpCreateLicense:
		lic := store.License{
			LicenseKey:   "LIC-" + g.newID(),
			Plan:         payload["plan"].(string),
			ValidityDays: payload["validityDays"].(int64),
			ActorID:      actor.SubjectID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := g.store.InsertLicense(ctx, lic); err != nil {
			return nil, fmt.Errorf("gateway: create license: %w", err)
		}
		return map[string]any{
			"success":    true,
			"licenseKey": lic.LicenseKey,
		}, nil

	case model.OpBanIP:
		ban := store.IPBan{
			BanID:        "ban-" + g.newID(),
			IPAddress:    payload["ipAddress"].(string),
			Reason:       payload["reason"].(string),
			DurationDays: payload["duration"].(int64),
			ActorID:      actor.SubjectID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := g.store.InsertIPBan(ctx, ban); err != nil {
			return nil, fmt.Errorf("gateway: ban ip: %w", err)
		}
		return map[string]any{
			"success": true,
			"banId":   ban.BanID,
		}, nil
	}

	return nil, fmt.Errorf("gateway: unknown operation %q", op)
}
