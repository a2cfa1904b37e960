package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/workflow"
)

// NotificationPublisher publishes validation workflow events to NATS for the
// notifications service.
//
// Subject convention: notifications.rc.<event_type>
// Event types: investigation_submitted, investigation_approved,
//              investigation_rejected, investigation_deleted
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt workflow operations.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// DecisionEvent is the JSON schema published to NATS.
type DecisionEvent struct {
	EventType       string         `json:"event_type"`
	InvestigationID int64          `json:"investigation_id"`
	CaseID          int64          `json:"case_id,omitempty"`
	ActorID         int64          `json:"actor_id"`
	ActorRole       string         `json:"actor_role"`
	Category        string         `json:"category,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// PublishDecision publishes one workflow event.
// Subject: notifications.rc.<eventType>
func (p *NotificationPublisher) PublishDecision(eventType string, investigationID, caseID int64, actor workflow.Actor, payload map[string]any) {
	if p.nc == nil {
		return
	}

	event := &DecisionEvent{
		EventType:       eventType,
		InvestigationID: investigationID,
		CaseID:          caseID,
		ActorID:         actor.ID,
		ActorRole:       string(actor.Role),
		Category:        "rc_validation",
		Payload:         payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.rc.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Int64("investigation_id", investigationID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Int64("investigation_id", investigationID).
		Msg("notification: event published")
}
