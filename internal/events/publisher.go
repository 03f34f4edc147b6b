// Package events publishes change notifications for connected clients.
// Delivery is fire-and-forget: publish failures are logged and never fail
// the operation that triggered them.
package events

import (
	"context"

	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
)

// Publisher publishes pharmacy domain events
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a new pharmacy event publisher
func NewPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-backend", log)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMedicineChanged publishes a medicine created/updated/deleted event
func (p *Publisher) PublishMedicineChanged(ctx context.Context, eventType, medicineID, name string) {
	if p == nil {
		return
	}

	data := messaging.MedicineEvent{
		MedicineID: medicineID,
		Name:       name,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("failed to publish medicine event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *Publisher) PublishStockAdjusted(ctx context.Context, medicineID, txType string, adjustment, newQuantity int, performedBy, reason string) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		MedicineID:  medicineID,
		Type:        txType,
		Adjustment:  adjustment,
		NewQuantity: newQuantity,
		PerformedBy: performedBy,
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("failed to publish stock adjusted event")
	}
}

// PublishPrescriptionChanged publishes a prescription lifecycle event
func (p *Publisher) PublishPrescriptionChanged(ctx context.Context, eventType, prescriptionID, status, actorID string) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionEvent{
		PrescriptionID: prescriptionID,
		Status:         status,
		ActorID:        actorID,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("prescription_id", prescriptionID).Msg("failed to publish prescription event")
	}
}

// PublishReorderChanged publishes a reorder request lifecycle event
func (p *Publisher) PublishReorderChanged(ctx context.Context, eventType, requestID, medicineID, status string, quantity int) {
	if p == nil {
		return
	}

	data := messaging.ReorderEvent{
		RequestID:  requestID,
		MedicineID: medicineID,
		Status:     status,
		Quantity:   quantity,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", requestID).Msg("failed to publish reorder event")
	}
}
