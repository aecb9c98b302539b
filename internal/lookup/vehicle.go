package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

type VehicleGetter interface {
	GetVehicle(ctx context.Context, id string) (*vehicle.Vehicle, error)
}

// VehicleLookup resolves a driver's assigned vehicle, consulting a local
// cache before the remote getter.
type VehicleLookup struct {
	vehicles VehicleGetter
	logger   *slog.Logger

	mu    sync.RWMutex
	cache reference.Table[vehicle.Vehicle]
}

func NewVehicleLookup(vehicles VehicleGetter, logger *slog.Logger) *VehicleLookup {
	return &VehicleLookup{
		vehicles: vehicles,
		logger:   logger,
		cache:    reference.Table[vehicle.Vehicle]{},
	}
}

// AssignedVehicle returns nil when the driver has no vehicle or the
// referenced vehicle does not exist. Only transport failures are errors.
func (l *VehicleLookup) AssignedVehicle(ctx context.Context, d driver.Driver) (*vehicle.Vehicle, error) {
	ref := d.AssignedVehicleID
	if ref.IsEmpty() {
		return nil, nil
	}

	l.mu.RLock()
	resolved := reference.Resolve(ref, l.cache)
	l.mu.RUnlock()
	if resolved != nil {
		return resolved, nil
	}

	v, err := l.vehicles.GetVehicle(ctx, ref.ID())
	if err != nil {
		if errors.Is(err, vehicle.ErrVehicleNotFound) {
			l.logger.Warn("assigned vehicle not found",
				"driver_id", d.ID,
				"vehicle_id", ref.ID())
			return nil, nil
		}
		return nil, err
	}

	l.mu.Lock()
	l.cache.Put(*v)
	l.mu.Unlock()
	return v, nil
}

// Forget drops a cached vehicle so the next lookup hits the getter.
func (l *VehicleLookup) Forget(id string) {
	l.mu.Lock()
	delete(l.cache, id)
	l.mu.Unlock()
}
