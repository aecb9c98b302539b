package lookup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/fleet-expense/internal/core/events"
)

// EventHandler keeps the vehicle cache in step with recorded odometer readings.
type EventHandler struct {
	vehicles *VehicleLookup
	logger   *slog.Logger
}

func NewEventHandler(vehicles *VehicleLookup, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		vehicles: vehicles,
		logger:   logger,
	}
}

func (h *EventHandler) HandleOdometerRecorded(ctx context.Context, event events.Event) error {
	recorded, ok := event.(*events.OdometerRecordedEvent)
	if !ok {
		h.logger.Error("invalid event type for odometer handler", "event_type", event.EventType())
		return fmt.Errorf("expected OdometerRecordedEvent, got %T", event)
	}

	h.vehicles.Forget(recorded.VehicleID)
	h.logger.Debug("vehicle cache entry dropped",
		"vehicle_id", recorded.VehicleID,
		"reading", recorded.Reading,
		"event_id", recorded.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeOdometerRecorded, h.HandleOdometerRecorded)

	h.logger.Info("lookup event handlers registered",
		"handlers", []string{events.EventTypeOdometerRecorded})
}
