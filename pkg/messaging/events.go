package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on the pharmacy exchange. Consumers treat them as
// fire-and-forget change notifications: "something changed, go refetch".
const (
	EventMedicineCreated       = "medicine.created"
	EventMedicineUpdated       = "medicine.updated"
	EventMedicineDeleted       = "medicine.deleted"
	EventStockAdjusted         = "medicine.stock.adjusted"
	EventPrescriptionCreated   = "prescription.created"
	EventPrescriptionDecided   = "prescription.decided"
	EventPrescriptionDispensed = "prescription.dispensed"
	EventReorderCreated        = "reorder.created"
	EventReorderUpdated        = "reorder.updated"
	EventReorderReceived       = "reorder.received"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID returns a unique event identifier
func GenerateEventID() string {
	return uuid.New().String()
}

// StockAdjustedEvent is published whenever a medicine's quantity changes
type StockAdjustedEvent struct {
	MedicineID  string `json:"medicine_id"`
	Type        string `json:"type"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason,omitempty"`
}

// MedicineEvent is published on medicine create/update/delete
type MedicineEvent struct {
	MedicineID string `json:"medicine_id"`
	Name       string `json:"name"`
}

// PrescriptionEvent is published on prescription lifecycle changes
type PrescriptionEvent struct {
	PrescriptionID string `json:"prescription_id"`
	Status         string `json:"status"`
	ActorID        string `json:"actor_id,omitempty"`
}

// ReorderEvent is published on reorder request lifecycle changes
type ReorderEvent struct {
	RequestID  string `json:"request_id"`
	MedicineID string `json:"medicine_id"`
	Status     string `json:"status"`
	Quantity   int    `json:"quantity"`
}
