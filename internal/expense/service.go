package expense

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/core/common/pagination"
	expenseDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/expense"
	"github.com/frahmantamala/fleet-expense/internal/core/events"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

var ErrExpenseNotFound = appErrors.ErrExpenseNotFound

const (
	SourceAPI    = "api"
	SourceWizard = "wizard"
)

// Repository interface defines the data access methods for expenses
type RepositoryAPI interface {
	Create(ctx context.Context, row *expenseDatamodel.Expense) error
	GetByID(ctx context.Context, id string) (*expenseDatamodel.Expense, error)
	Update(ctx context.Context, row *expenseDatamodel.Expense) error
	List(ctx context.Context, filter ServerFilter) ([]*expenseDatamodel.Expense, error)
}

// DriverDirectory resolves driver ids for search and sort by driver name.
type DriverDirectory interface {
	Directory(ctx context.Context, ids []string) (reference.Table[driver.Driver], error)
}

type OdometerRecorder interface {
	RecordOdometer(ctx context.Context, vehicleID string, reading int64) error
}

type ServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultCurrency string
	DefaultType     Type
	// MaxFetch caps the initial load of the list store.
	MaxFetch int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize < c.DefaultPageSize {
		c.MaxPageSize = 100
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = DefaultCurrency
	}
	if c.DefaultType == "" {
		c.DefaultType = TypeMisc
	}
	if c.MaxFetch <= 0 {
		c.MaxFetch = 10000
	}
	return c
}

// Service handles expense business logic. With a ListStore it serves
// listings from memory; without one every listing narrows in SQL first.
type Service struct {
	repo      RepositoryAPI
	drivers   DriverDirectory
	store     *ListStore
	publisher events.Publisher
	odometer  OdometerRecorder
	cfg       ServiceConfig
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, drivers DriverDirectory, store *ListStore, publisher events.Publisher, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		drivers:   drivers,
		store:     store,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// SetOdometerRecorder makes creates with a vehicle and reading advance
// the vehicle's odometer.
func (s *Service) SetOdometerRecorder(rec OdometerRecorder) {
	s.odometer = rec
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Normalize fills paging and sort defaults and clamps the page size.
func (s *Service) Normalize(q ListQuery) ListQuery {
	if q.PerPage <= 0 {
		q.PerPage = s.cfg.DefaultPageSize
	}
	if q.PerPage > s.cfg.MaxPageSize {
		q.PerPage = s.cfg.MaxPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if !q.Sort.SortBy.IsValid() {
		q.Sort.SortBy = DefaultSort.SortBy
	}
	if !q.Sort.SortOrder.IsValid() {
		q.Sort.SortOrder = DefaultSort.SortOrder
	}
	return q
}

// ListExpenses narrows, filters, sorts and paginates. A view token that no
// longer matches the criteria sends the caller back to page 1.
func (s *Service) ListExpenses(ctx context.Context, q ListQuery) (*ListResult, error) {
	start := time.Now()
	q = s.Normalize(q)
	if q.Refresh {
		s.Reload()
	}

	sorted, table, err := s.Query(ctx, q)
	if err != nil {
		metrics.ObserveList(metrics.ResultError, time.Since(start))
		return nil, err
	}

	view := q.ViewToken()
	page := q.Page
	reset := false
	if q.View != "" && q.View != view && page != 1 {
		page = 1
		reset = true
	}

	p := pagination.Paginate(sorted, page, q.PerPage)
	items := make([]Expense, len(p.Items))
	for i, e := range p.Items {
		items[i] = populateDriver(e, table)
	}

	metrics.ObserveList(metrics.ResultSuccess, time.Since(start))
	return &ListResult{
		Expenses:   items,
		Page:       p.Page,
		PerPage:    p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		StartIndex: p.StartIndex,
		EndIndex:   p.EndIndex,
		HasNext:    p.HasNext(),
		HasPrev:    p.HasPrev(),
		View:       view,
		PageReset:  reset,
	}, nil
}

// Query returns every expense matching q in sorted order, together with the
// driver table used to resolve names.
func (s *Service) Query(ctx context.Context, q ListQuery) ([]Expense, reference.Table[driver.Driver], error) {
	q = s.Normalize(q)
	server := ServerFilterFrom(q)

	var base []Expense
	if s.store != nil {
		items, err := s.snapshot(ctx)
		if err != nil {
			return nil, nil, err
		}
		base = NarrowServerSide(items, server)
	} else {
		server.Limit = s.cfg.MaxFetch
		rows, err := s.repo.List(ctx, server)
		if err != nil {
			s.logger.Error("failed to list expenses", "error", err)
			return nil, nil, appErrors.NewInternalError("failed to list expenses", err)
		}
		base = FromDataModelSlice(rows)
	}

	table, err := s.drivers.Directory(ctx, driverIDs(base))
	if err != nil {
		s.logger.Warn("driver directory unavailable, names left unresolved", "error", err)
		table = reference.Table[driver.Driver]{}
	}

	filtered := FilterExpenses(base, q.Filter, table)
	return SortExpenses(filtered, q.Sort.SortBy, q.Sort.SortOrder, table), table, nil
}

// Export renders every expense matching q, ignoring paging.
func (s *Service) Export(ctx context.Context, q ListQuery, format ExportFormat) ([]byte, error) {
	start := time.Now()
	if !format.IsValid() {
		return nil, appErrors.NewValidationError("format must be xlsx or pdf", appErrors.ErrCodeInvalidRequest)
	}

	q = s.Normalize(q)
	items, table, err := s.Query(ctx, q)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(start))
		return nil, err
	}

	report := Report{
		Expenses:    items,
		Drivers:     table,
		Criteria:    q.Filter,
		Sort:        q.Sort,
		GeneratedAt: time.Now().UTC(),
	}
	data, err := report.Render(format)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(start))
		s.logger.Error("failed to render export", "format", format, "error", err)
		return nil, appErrors.NewInternalError("failed to render export", err)
	}

	metrics.ObserveExport(string(format), metrics.ResultSuccess, time.Since(start))
	s.logger.Info("expense export rendered", "format", format, "count", len(items), "bytes", len(data))
	return data, nil
}

func (s *Service) snapshot(ctx context.Context) ([]Expense, error) {
	if s.store.Loaded() {
		return s.store.List(), nil
	}

	rows, err := s.repo.List(ctx, ServerFilter{Limit: s.cfg.MaxFetch})
	if err != nil {
		s.logger.Error("failed to load expense list", "error", err)
		return nil, appErrors.NewInternalError("failed to list expenses", err)
	}
	items := FromDataModelSlice(rows)
	s.store.Load(items)
	s.logger.Info("expense list loaded", "count", len(items))
	return s.store.List(), nil
}

// Reload drops the in-memory list so the next listing refetches it.
func (s *Service) Reload() {
	if s.store != nil {
		s.store.Invalidate()
	}
}

func (s *Service) GetExpense(ctx context.Context, id string) (*Expense, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			return nil, ErrExpenseNotFound
		}
		s.logger.Error("failed to get expense", "expense_id", id, "error", err)
		return nil, appErrors.NewInternalError("failed to get expense", err)
	}
	return FromDataModel(row), nil
}

// CreateExpense validates, persists and prepends the expense to the list.
func (s *Service) CreateExpense(ctx context.Context, dto CreateExpenseDTO, source string) (*Expense, error) {
	dto.Normalize(s.cfg.DefaultCurrency, s.cfg.DefaultType)
	if err := dto.Validate(); err != nil {
		metrics.IncCreate(source, metrics.ResultInvalid)
		s.logger.Info("expense validation failed", "source", source, "fields", err.GetDetailedMessage())
		return nil, err
	}

	now := time.Now().UTC()
	e := &Expense{
		ID:            uuid.New().String(),
		DriverID:      reference.ByID[driver.Driver](dto.DriverID),
		VehicleID:     reference.FromPtr[vehicle.Vehicle](dto.VehicleID),
		Type:          dto.Type,
		Merchant:      dto.Merchant,
		AmountFinal:   dto.AmountFinal,
		Currency:      dto.Currency,
		Date:          dto.Date,
		Kilometers:    dto.Kilometers,
		Notes:         dto.Notes,
		ReceiptURL:    dto.ReceiptURL,
		OCRAmount:     dto.OCRAmount,
		OCRMerchant:   dto.OCRMerchant,
		OCRDate:       dto.OCRDate,
		OCRConfidence: dto.OCRConfidence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if dto.Category != nil {
		c := category.Category(*dto.Category)
		e.Category = &c
	}

	if err := s.repo.Create(ctx, ToDataModel(e)); err != nil {
		metrics.IncCreate(source, metrics.ResultError)
		s.logger.Error("failed to create expense", "driver_id", dto.DriverID, "error", err)
		return nil, appErrors.NewInternalError("failed to create expense", err)
	}

	if s.store != nil && s.store.Loaded() {
		s.store.Prepend(*e)
	}

	if s.odometer != nil && !e.VehicleID.IsEmpty() && e.Kilometers != nil {
		if err := s.odometer.RecordOdometer(ctx, e.VehicleID.ID(), *e.Kilometers); err != nil {
			s.logger.Warn("failed to record odometer reading",
				"expense_id", e.ID,
				"vehicle_id", e.VehicleID.ID(),
				"error", err)
		} else {
			// cached vehicles must see the reading before the next draft selects one
			s.publishSync(ctx, events.NewOdometerRecordedEvent(e.VehicleID.ID(), *e.Kilometers))
		}
	}

	s.publish(ctx, events.NewExpenseCreatedEvent(e.ID, e.DriverID.ID(), string(e.Type), e.AmountFinal.StringFixed(2), e.Currency, source))
	metrics.IncCreate(source, metrics.ResultSuccess)

	s.logger.Info("expense created successfully",
		"expense_id", e.ID,
		"driver_id", dto.DriverID,
		"amount", e.AmountFinal.String(),
		"source", source)

	return e, nil
}

// UpdateExpense applies a patch and replaces the listed copy in place.
func (s *Service) UpdateExpense(ctx context.Context, id string, patch UpdateExpenseDTO) (*Expense, error) {
	if err := patch.Validate(); err != nil {
		metrics.IncUpdate(metrics.ResultInvalid)
		return nil, err
	}

	e, err := s.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := patch.Apply(e)
	if len(changed) == 0 {
		return e, nil
	}
	e.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, ToDataModel(e)); err != nil {
		metrics.IncUpdate(metrics.ResultError)
		s.logger.Error("failed to update expense", "expense_id", id, "error", err)
		return nil, appErrors.NewInternalError("failed to update expense", err)
	}

	if s.store != nil {
		s.store.Patch(*e)
	}

	s.publish(ctx, events.NewExpenseUpdatedEvent(e.ID, changed))
	metrics.IncUpdate(metrics.ResultSuccess)
	s.logger.Info("expense updated", "expense_id", id, "fields", changed)
	return e, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) publishSync(ctx context.Context, event events.Event) {
	sp, ok := s.publisher.(events.SyncPublisher)
	if !ok {
		s.publish(ctx, event)
		return
	}
	if err := sp.PublishSync(ctx, event); err != nil {
		s.logger.Warn("event handler failed", "event_type", event.EventType(), "error", err)
	}
}

func driverIDs(items []Expense) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, e := range items {
		if e.DriverID.IsInline() || e.DriverID.IsEmpty() {
			continue
		}
		id := e.DriverID.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// populateDriver embeds the resolved driver so clients get display-ready rows.
func populateDriver(e Expense, table reference.Table[driver.Driver]) Expense {
	if d := reference.Resolve(e.DriverID, table); d != nil {
		e.DriverID = reference.Inline(*d)
	}
	return e
}
