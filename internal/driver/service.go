package driver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	userDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/user"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
)

var ErrDriverNotFound = appErrors.ErrDriverNotFound

const defaultSearchLimit = 20

type RepositoryAPI interface {
	Search(ctx context.Context, query string, limit int) ([]*userDatamodel.User, error)
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error)
}

type Service struct {
	repo        RepositoryAPI
	searchLimit int
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, searchLimit int, logger *slog.Logger) *Service {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Service{
		repo:        repo,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

// SearchDrivers matches name or email by substring, case-insensitively.
func (s *Service) SearchDrivers(ctx context.Context, query string) ([]Driver, error) {
	rows, err := s.repo.Search(ctx, strings.TrimSpace(query), s.searchLimit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Error("driver search failed", "query", query, "error", err)
		return nil, appErrors.NewInternalError("failed to search drivers", err)
	}
	return FromDataModelSlice(rows), nil
}

func (s *Service) GetDriver(ctx context.Context, id string) (*Driver, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		s.logger.Error("failed to get driver", "driver_id", id, "error", err)
		return nil, appErrors.NewInternalError("failed to get driver", err)
	}
	return FromDataModel(row), nil
}

// Directory loads the drivers behind ids into a lookup table.
func (s *Service) Directory(ctx context.Context, ids []string) (reference.Table[Driver], error) {
	if len(ids) == 0 {
		return reference.Table[Driver]{}, nil
	}
	rows, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load driver directory", "count", len(ids), "error", err)
		return nil, appErrors.NewInternalError("failed to load drivers", err)
	}
	return reference.NewTable(FromDataModelSlice(rows)), nil
}
