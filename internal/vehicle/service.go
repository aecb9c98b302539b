package vehicle

import (
	"context"
	"errors"
	"log/slog"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	vehicleDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/vehicle"
)

var ErrVehicleNotFound = appErrors.ErrVehicleNotFound

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*vehicleDatamodel.Vehicle, error)
	Create(ctx context.Context, v *vehicleDatamodel.Vehicle) error
	UpdateOdometer(ctx context.Context, id string, reading int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			return nil, ErrVehicleNotFound
		}
		s.logger.Error("failed to get vehicle", "vehicle_id", id, "error", err)
		return nil, appErrors.NewInternalError("failed to get vehicle", err)
	}
	return FromDataModel(row), nil
}

// RecordOdometer raises the stored reading; lower readings are ignored.
func (s *Service) RecordOdometer(ctx context.Context, id string, reading int64) error {
	current, err := s.GetVehicle(ctx, id)
	if err != nil {
		return err
	}
	if reading <= current.CurrentOdometer {
		return nil
	}
	if err := s.repo.UpdateOdometer(ctx, id, reading); err != nil {
		s.logger.Error("failed to update odometer", "vehicle_id", id, "reading", reading, "error", err)
		return appErrors.NewInternalError("failed to update odometer", err)
	}
	s.logger.Info("odometer updated", "vehicle_id", id, "from", current.CurrentOdometer, "to", reading)
	return nil
}
