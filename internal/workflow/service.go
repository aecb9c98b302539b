package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

var ErrDraftNotFound = appErrors.ErrDraftNotFound

type DriverDirectory interface {
	SearchDrivers(ctx context.Context, query string) ([]driver.Driver, error)
	GetDriver(ctx context.Context, id string) (*driver.Driver, error)
}

type VehicleResolver interface {
	AssignedVehicle(ctx context.Context, d driver.Driver) (*vehicle.Vehicle, error)
}

type ReceiptUploader interface {
	Upload(ctx context.Context, in receipt.UploadInput) (*receipt.UploadResult, error)
}

type ExpenseCreator interface {
	CreateExpense(ctx context.Context, dto expense.CreateExpenseDTO, source string) (*expense.Expense, error)
}

type Config struct {
	SearchDebounce  time.Duration
	PrefillPolicy   PrefillPolicy
	DefaultCurrency string
	DefaultType     expense.Type
	DraftTTL        time.Duration
}

func (c Config) withDefaults() Config {
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = 300 * time.Millisecond
	}
	if !c.PrefillPolicy.IsValid() {
		c.PrefillPolicy = PrefillOverwrite
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = expense.DefaultCurrency
	}
	if !c.DefaultType.IsValid() {
		c.DefaultType = expense.TypeMisc
	}
	return c
}

// Service owns the open drafts and the collaborators they call.
type Service struct {
	drivers  DriverDirectory
	vehicles VehicleResolver
	receipts ReceiptUploader
	expenses ExpenseCreator
	registry *Registry
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(drivers DriverDirectory, vehicles VehicleResolver, receipts ReceiptUploader, expenses ExpenseCreator, cfg Config, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		drivers:  drivers,
		vehicles: vehicles,
		receipts: receipts,
		expenses: expenses,
		registry: NewRegistry(cfg.DraftTTL, logger),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) NewDraft(ctx context.Context) *Snapshot {
	d := newDraft(uuid.New().String(), s)
	s.registry.Put(d)
	s.logger.Info("expense draft opened", "draft_id", d.ID())
	return d.Snapshot()
}

func (s *Service) draft(id string) (*Draft, error) {
	d, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	d.touch(s.now())
	return d, nil
}

func (s *Service) GetDraft(ctx context.Context, id string) (*Snapshot, error) {
	d, err := s.draft(id)
	if err != nil {
		return nil, err
	}
	return d.Snapshot(), nil
}

func (s *Service) Search(ctx context.Context, id, query string) (*Snapshot, error) {
	return s.step(id, func(d *Draft) error { return d.Search(query) })
}

func (s *Service) SelectDriver(ctx context.Context, id, driverID string) (*Snapshot, error) {
	return s.step(id, func(d *Draft) error { return d.SelectDriver(ctx, driverID) })
}

func (s *Service) Back(ctx context.Context, id string) (*Snapshot, error) {
	return s.step(id, func(d *Draft) error { return d.Back() })
}

func (s *Service) UpdateForm(ctx context.Context, id string, patch FormPatch) (*Snapshot, error) {
	return s.step(id, func(d *Draft) error { return d.Update(patch) })
}

func (s *Service) AttachReceipt(ctx context.Context, id string, in receipt.UploadInput) (*Snapshot, error) {
	return s.step(id, func(d *Draft) error { return d.AttachReceipt(ctx, in) })
}

// Submit returns the snapshot alongside any error so callers can show the
// preserved form and its field errors.
func (s *Service) Submit(ctx context.Context, id string) (*Snapshot, error) {
	d, err := s.draft(id)
	if err != nil {
		return nil, err
	}
	_, err = d.Submit(ctx)
	return d.Snapshot(), err
}

// Cancel closes the draft and forgets it.
func (s *Service) Cancel(ctx context.Context, id string) error {
	d, err := s.draft(id)
	if err != nil {
		return err
	}
	d.Cancel()
	s.registry.Remove(id)
	s.logger.Info("expense draft cancelled", "draft_id", id)
	return nil
}

func (s *Service) step(id string, fn func(*Draft) error) (*Snapshot, error) {
	d, err := s.draft(id)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	return d.Snapshot(), nil
}
