package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/platform/querier"
)

// Action names recorded by the admin surfaces. Dot-scoped so listings
// filter cleanly by prefix.
const (
	ActionPolicyUpdate    = "policy.update"
	ActionSettingsUpdate  = "settings.update"
	ActionBrandingUpdate  = "settings.branding"
	ActionRoleUpdate      = "user.role"
	ActionUserStatus      = "user.status"
	ActionPasswordReset   = "user.password_reset"
	ActionBalanceAdjust   = "leave.balance_adjust"
	ActionCarryForward    = "leave.carry_forward_merge"
	ActionHolidayCreate   = "holiday.create"
	ActionHolidayUpdate   = "holiday.update"
	ActionHolidayDelete   = "holiday.delete"
	ActionSettingsCleanup = "settings.carry_forward_cleanup"
)

// Event is one recorded administrative mutation.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
	ActorName string     `json:"actorName"`
	Action    string     `json:"action"`
	Entity    string     `json:"entity"`
	EntityID  string     `json:"entityId"`
	Detail    string     `json:"detail"`
	RequestID string     `json:"requestId"`
	IP        string     `json:"ip"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Filter struct {
	Action string
	Entity string
	Actor  string
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// Record appends one event. Callers log failures and move on; an audit
// write never blocks the mutation it describes.
func (s *Service) Record(ctx context.Context, actorID *uuid.UUID, actorName, action, entity, entityID, detail, requestID, ip string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO audit_events (actor_id, actor_name, action, entity, entity_id, detail, request_id, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, actorID, actorName, action, entity, entityID, detail, requestID, ip)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT count(*)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildBaseQuery(
		"SELECT id, actor_id, actor_name, action, entity, entity_id, detail, request_id, ip, created_at", filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.ActorName, &evt.Action, &evt.Entity,
			&evt.EntityID, &evt.Detail, &evt.RequestID, &evt.IP, &evt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events"
	where := ""
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Entity != "" {
		add("entity = $%d", filter.Entity)
	}
	if filter.Actor != "" {
		add("actor_name ILIKE $%d", "%"+filter.Actor+"%")
	}
	return query + where, args
}
