package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	vehicleDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/vehicle"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) vehicle.RepositoryAPI {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*vehicleDatamodel.Vehicle, error) {
	var v vehicleDatamodel.Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, vehicle.ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) Create(ctx context.Context, v *vehicleDatamodel.Vehicle) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// UpdateOdometer only moves the reading forward.
func (r *VehicleRepository) UpdateOdometer(ctx context.Context, id string, reading int64) error {
	return r.db.WithContext(ctx).Model(&vehicleDatamodel.Vehicle{}).
		Where("id = ? AND current_odometer < ?", id, reading).
		Updates(map[string]interface{}{
			"current_odometer": reading,
			"updated_at":       time.Now(),
		}).Error
}
