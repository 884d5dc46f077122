package application

import (
	"context"
	"encoding/json"
	"errors"

	"grants-cloud/internal/audit"
	"grants-cloud/internal/eventbus"
	"grants-cloud/internal/observability/metrics"
)

// OverEngagementNotifier is told about sub-lines engaged above their ceiling.
type OverEngagementNotifier interface {
	NotifyOverEngagement(ctx context.Context, event OverEngagementDetected) error
}

// RegisterAuditSubscribers writes an audit entry for every mutating event.
func RegisterAuditSubscribers(bus eventbus.EventBus, logger audit.Logger) error {
	if bus == nil {
		return errors.New("audit subscribers: nil bus")
	}
	if logger == nil {
		return errors.New("audit subscribers: nil logger")
	}
	eventbus.On(bus, func(ctx context.Context, ev GrantCreated) error {
		return writeAudit(ctx, logger, ev.EventMeta, "grant.create", "grant", ev.Grant.ID, ev.Grant.ID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev GrantStatusChanged) error {
		return writeAudit(ctx, logger, ev.EventMeta, "grant.status", "grant", ev.GrantID, ev.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev GrantReallocated) error {
		return writeAudit(ctx, logger, ev.EventMeta, "grant.reallocate", "grant", ev.GrantID, ev.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev BudgetPlanned) error {
		resourceID := ev.LineID
		if ev.SubLineID != "" {
			resourceID = ev.SubLineID
		}
		return writeAudit(ctx, logger, ev.EventMeta, "budget."+ev.Change, "budget_line", resourceID, ev.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev EngagementCreated) error {
		return writeAudit(ctx, logger, ev.EventMeta, "engagement.create", "engagement", ev.Engagement.ID, ev.Engagement.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev EngagementEdited) error {
		return writeAudit(ctx, logger, ev.EventMeta, "engagement.edit", "engagement", ev.Engagement.ID, ev.Engagement.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev ApprovalSigned) error {
		return writeAudit(ctx, logger, ev.EventMeta, "approval.sign", "engagement", ev.EngagementID, ev.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev EngagementStatusChanged) error {
		return writeAudit(ctx, logger, ev.EventMeta, "engagement.status", "engagement", ev.EngagementID, ev.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev PaymentRecorded) error {
		return writeAudit(ctx, logger, ev.EventMeta, "payment.record", "payment", ev.Payment.ID, ev.Payment.GrantID, ev)
	})
	eventbus.On(bus, func(ctx context.Context, ev PaymentStatusChanged) error {
		return writeAudit(ctx, logger, ev.EventMeta, "payment.status", "payment", ev.PaymentID, ev.GrantID, ev)
	})
	return nil
}

// RegisterMetricsSubscribers counts events that have no service-side metric.
func RegisterMetricsSubscribers(bus eventbus.EventBus) error {
	if bus == nil {
		return errors.New("metrics subscribers: nil bus")
	}
	eventbus.On(bus, func(_ context.Context, _ OverEngagementDetected) error {
		metrics.IncOverEngaged()
		return nil
	})
	return nil
}

// RegisterNotifier forwards over-engagement events to notifier.
func RegisterNotifier(bus eventbus.EventBus, notifier OverEngagementNotifier) error {
	if bus == nil {
		return errors.New("notifier subscriber: nil bus")
	}
	if notifier == nil {
		return errors.New("notifier subscriber: nil notifier")
	}
	eventbus.On(bus, func(ctx context.Context, ev OverEngagementDetected) error {
		return notifier.NotifyOverEngagement(ctx, ev)
	})
	return nil
}

func writeAudit(ctx context.Context, logger audit.Logger, meta EventMeta, action, resourceType, resourceID, grantID string, payload any) error {
	metadata, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req := audit.RequestMetaFromContext(ctx)
	return logger.Log(ctx, audit.Entry{
		Actor:        meta.Actor.Subject,
		Role:         string(meta.Actor.Role),
		Profession:   string(meta.Actor.Profession),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		GrantID:      grantID,
		Metadata:     metadata,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		CreatedAt:    meta.OccurredAt,
	})
}
