package realtime

import (
	"context"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// eventQueue is the durable store behind the polling fallback
type eventQueue interface {
	Append(e *model.RealtimeEvent) error
	PendingAfter(userID, tenantID, afterID uint, limit int) ([]model.RealtimeEvent, error)
	MarkDelivered(userID, tenantID uint, eventIDs []string) (int64, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Dispatcher fans realtime events out to the push sink and the durable
// queue. The queue write is the source of truth; a sink failure downgrades
// the event to poll delivery instead of losing it.
type Dispatcher struct {
	sink   EventSink
	queue  eventQueue
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. sink may be nil, leaving only the
// polling transport.
func NewDispatcher(sink EventSink, queue eventQueue, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, queue: queue, logger: logger}
}

// IsAvailable reports whether realtime delivery works at all. The polling
// fallback needs nothing but the database, so this is always true.
func (d *Dispatcher) IsAvailable() bool { return true }

// GetConnectionMethod names the transport clients should try first
func (d *Dispatcher) GetConnectionMethod() string {
	if d.sink != nil {
		return d.sink.Name()
	}
	return "polling"
}

// dispatch persists the event and then best-effort pushes it. The returned
// bool reports whether the event was accepted, not whether the push landed.
func (d *Dispatcher) dispatch(ctx context.Context, eventType, channel string, userID, tenantID uint, payload model.Metadata) bool {
	ev := &model.RealtimeEvent{
		Type:     eventType,
		Channel:  channel,
		UserID:   userID,
		TenantID: tenantID,
		Payload:  payload,
	}
	if err := d.queue.Append(ev); err != nil {
		d.logger.Error("failed to queue realtime event",
			zap.String("type", eventType),
			zap.String("channel", channel),
			zap.Error(err))
		return false
	}
	prometheus.RecordRealtimeEvent(eventType)

	if d.sink != nil {
		env := Envelope{
			EventID:   ev.EventID,
			Type:      eventType,
			Channel:   channel,
			Payload:   payload,
			Timestamp: time.Now().Unix(),
		}
		if err := d.sink.Publish(ctx, channel, env.marshal()); err != nil {
			d.logger.Warn("push transport failed, event queued for polling",
				zap.String("sink", d.sink.Name()),
				zap.String("event_id", ev.EventID),
				zap.Error(err))
		}
	}
	return true
}

// BroadcastNewMessage notifies the receiver of a new federated message
func (d *Dispatcher) BroadcastNewMessage(ctx context.Context, msg *model.FederatedMessage, unreadCount int64) bool {
	payload := model.Metadata{
		"message_id":       msg.ID,
		"sender_user_id":   msg.SenderUserID,
		"sender_tenant_id": msg.SenderTenantID,
		"subject":          msg.Subject,
		"unread_count":     unreadCount,
	}
	if msg.ExternalSenderName != "" {
		payload["sender_name"] = msg.ExternalSenderName
	}
	ch := UserChannel(msg.ReceiverTenantID, msg.ReceiverUserID)
	return d.dispatch(ctx, model.EventNewMessage, ch, msg.ReceiverUserID, msg.ReceiverTenantID, payload)
}

// BroadcastTyping signals typing activity on a conversation channel. Typing
// is ephemeral so it goes to the push sink only, never to the queue.
func (d *Dispatcher) BroadcastTyping(ctx context.Context, senderTenant, senderUser, receiverTenant, receiverUser uint, typing bool) bool {
	if d.sink == nil {
		return false
	}
	ch := ConversationChannel(senderTenant, senderUser, receiverTenant, receiverUser)
	env := Envelope{
		Type:    model.EventTyping,
		Channel: ch,
		Payload: map[string]interface{}{
			"user_id":   senderUser,
			"tenant_id": senderTenant,
			"typing":    typing,
		},
		Timestamp: time.Now().Unix(),
	}
	if err := d.sink.Publish(ctx, ch, env.marshal()); err != nil {
		d.logger.Debug("typing event dropped", zap.Error(err))
		return false
	}
	return true
}

// BroadcastMessageRead notifies the sender that their message was read
func (d *Dispatcher) BroadcastMessageRead(ctx context.Context, msg *model.FederatedMessage) bool {
	ch := UserChannel(msg.SenderTenantID, msg.SenderUserID)
	return d.dispatch(ctx, model.EventMessageRead, ch, msg.SenderUserID, msg.SenderTenantID, model.Metadata{
		"message_id":         msg.ID,
		"receiver_user_id":   msg.ReceiverUserID,
		"receiver_tenant_id": msg.ReceiverTenantID,
	})
}

// BroadcastTransaction notifies the receiver of an incoming transfer
func (d *Dispatcher) BroadcastTransaction(ctx context.Context, t *model.FederatedTransaction) bool {
	ch := UserChannel(t.ReceiverTenantID, t.ReceiverUserID)
	return d.dispatch(ctx, model.EventTransaction, ch, t.ReceiverUserID, t.ReceiverTenantID, model.Metadata{
		"transaction_id":   t.ID,
		"amount":           t.Amount,
		"sender_user_id":   t.SenderUserID,
		"sender_tenant_id": t.SenderTenantID,
		"description":      t.Description,
	})
}

// BroadcastPartnershipUpdate notifies a tenant contact of a partnership
// transition
func (d *Dispatcher) BroadcastPartnershipUpdate(ctx context.Context, tenantID, userID uint, p *model.Partnership) bool {
	ch := UserChannel(tenantID, userID)
	return d.dispatch(ctx, model.EventPartnershipUpdate, ch, userID, tenantID, model.Metadata{
		"partnership_id": p.ID,
		"status":         p.Status,
		"level":          p.Level,
		"partner_tenant": p.PartnerOf(tenantID),
	})
}

// BroadcastNewMember tells the member's own sessions their profile is now
// visible to federated partners
func (d *Dispatcher) BroadcastNewMember(ctx context.Context, tenantID, userID uint) bool {
	ch := UserChannel(tenantID, userID)
	return d.dispatch(ctx, model.EventNewMember, ch, userID, tenantID, model.Metadata{
		"user_id":   userID,
		"tenant_id": tenantID,
	})
}

// BroadcastActivityEvent notifies a member of federated activity touching
// them, such as a partner viewing their profile
func (d *Dispatcher) BroadcastActivityEvent(ctx context.Context, tenantID, userID uint, activity string, data model.Metadata) bool {
	if data == nil {
		data = model.Metadata{}
	}
	data["activity"] = activity
	ch := UserChannel(tenantID, userID)
	return d.dispatch(ctx, model.EventActivity, ch, userID, tenantID, data)
}

// GetPendingEvents returns queued undelivered events for a polling client,
// resuming after the last row id the client has seen
func (d *Dispatcher) GetPendingEvents(userID, tenantID, afterID uint, limit int) ([]model.RealtimeEvent, error) {
	return d.queue.PendingAfter(userID, tenantID, afterID, limit)
}

// MarkEventsDelivered acknowledges polled events
func (d *Dispatcher) MarkEventsDelivered(userID, tenantID uint, eventIDs []string) (int64, error) {
	return d.queue.MarkDelivered(userID, tenantID, eventIDs)
}

// CleanupOldEvents removes queued events older than the retention window
func (d *Dispatcher) CleanupOldEvents(retention time.Duration) (int64, error) {
	return d.queue.DeleteOlderThan(time.Now().Add(-retention))
}
