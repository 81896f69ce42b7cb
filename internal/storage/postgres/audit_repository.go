package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rungomx/server/internal/audit"
)

func insertAudit(ctx context.Context, q queryer, entry audit.Entry) error {
	before, err := jsonOrNil(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	after, err := jsonOrNil(entry.After)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}

	var actor, ip *string
	if entry.ActorUserID != "" {
		actor = &entry.ActorUserID
	}
	if entry.IPAddress != "" {
		ip = &entry.IPAddress
	}

	_, err = q.Exec(ctx, `
INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, before, after, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, entry.ID, actor, entry.Action, entry.EntityType, entry.EntityID, before, after, ip, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func jsonOrNil(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
