package workflow

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/internal/lookup"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

const (
	msgNoVehicle       = "No vehicle assigned"
	msgVehicleFailed   = "Assigned vehicle could not be loaded"
	msgNetworkError    = "Network error, please check your connection and try again"
	msgSubmitFallback  = "Failed to create expense"
	msgReceiptDeferred = "Receipt could not be uploaded, it will be retried on submit"
)

// ReceiptRef is an uploaded receipt attached to a draft.
type ReceiptRef struct {
	Digest      string             `json:"digest"`
	URL         string             `json:"receiptUrl"`
	DownloadURL string             `json:"downloadUrl"`
	OCR         *receipt.OCRResult `json:"ocr,omitempty"`
}

// Snapshot is the client-facing view of a draft.
type Snapshot struct {
	ID                string              `json:"id"`
	State             State               `json:"state"`
	Form              Form                `json:"form"`
	Dirty             []string            `json:"dirty"`
	Search            lookup.SearchResult `json:"search"`
	SearchPending     bool                `json:"searchPending"`
	Driver            *driver.Driver      `json:"driver,omitempty"`
	Vehicle           *vehicle.Vehicle    `json:"vehicle,omitempty"`
	VehicleNotice     string              `json:"vehicleNotice,omitempty"`
	Receipt           *ReceiptRef         `json:"receipt,omitempty"`
	ReceiptPending    bool                `json:"receiptPending"`
	NeedsVerification bool                `json:"needsVerification"`
	Errors            map[string]string   `json:"errors,omitempty"`
	ErrorMessages     map[string]string   `json:"errorMessages,omitempty"`
	SubmitError       string              `json:"submitError,omitempty"`
	Expense           *expense.Expense    `json:"expense,omitempty"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// Draft is one run of the creation wizard. All methods are safe for
// concurrent use; collaborator calls happen under the draft's lock so a
// draft never runs two steps at once.
type Draft struct {
	id   string
	deps *Service

	mu            sync.Mutex
	state         State
	form          *Form
	search        *lookup.DriverSearch
	driver        *driver.Driver
	vehicle       *vehicle.Vehicle
	vehicleNotice string
	receipt       *ReceiptRef
	pendingFile   *receipt.UploadInput
	errors        appErrors.ValidationErrors
	submitError   string
	created       *expense.Expense
	touchedAt     time.Time
}

func newDraft(id string, deps *Service) *Draft {
	cfg := deps.cfg
	d := &Draft{
		id:        id,
		deps:      deps,
		state:     StateDriverSelect,
		form:      NewForm(cfg.DefaultCurrency, cfg.DefaultType),
		search:    lookup.NewDriverSearch(deps.drivers, cfg.SearchDebounce, deps.logger),
		touchedAt: deps.now(),
	}
	// a landed search result counts as activity for the idle sweep
	d.search.OnResult(func(lookup.SearchResult) {
		d.touch(deps.now())
	})
	return d
}

func (d *Draft) ID() string {
	return d.id
}

func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Draft) logger() *slog.Logger {
	return d.deps.logger.With("draft_id", d.id)
}

// transition moves the FSM; callers hold d.mu.
func (d *Draft) transition(op string, next State) error {
	if !d.state.CanTransitionTo(next) {
		return illegal(op, d.state)
	}
	metrics.IncWizardTransition(string(d.state), string(next))
	d.logger().Debug("draft transition", "from", d.state, "to", next)
	d.state = next
	return nil
}

func (d *Draft) require(op string, state State) error {
	if d.state != state {
		return illegal(op, d.state)
	}
	return nil
}

// Search feeds the debounced driver search.
func (d *Draft) Search(query string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("search", StateDriverSelect); err != nil {
		return err
	}
	d.search.Input(query)
	return nil
}

// SelectDriver picks a driver and moves to detail entry. The assigned
// vehicle is looked up on the way; a missing vehicle never blocks.
func (d *Draft) SelectDriver(ctx context.Context, driverID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("select driver", StateDriverSelect); err != nil {
		return err
	}

	selected, err := d.findDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if err := d.transition("select driver", StateDetailEntry); err != nil {
		return err
	}
	d.driver = selected
	d.errors = appErrors.ValidationErrors{}
	d.submitError = ""

	v, err := d.deps.vehicles.AssignedVehicle(ctx, *selected)
	switch {
	case err != nil:
		d.logger().Warn("assigned vehicle lookup failed", "driver_id", selected.ID, "error", err)
		d.vehicleNotice = msgVehicleFailed
	case v == nil:
		d.vehicleNotice = msgNoVehicle
	default:
		d.vehicle = v
		d.vehicleNotice = ""
		d.form.SeedOdometer(v)
	}
	return nil
}

// findDriver prefers the loaded search candidates over a directory call.
func (d *Draft) findDriver(ctx context.Context, id string) (*driver.Driver, error) {
	for _, candidate := range d.search.Result().Drivers {
		if candidate.ID == id {
			c := candidate
			return &c, nil
		}
	}
	return d.deps.drivers.GetDriver(ctx, id)
}

// Back returns to driver selection, dropping the vehicle and whatever the
// form took from it. OCR prefill and typed values stay.
func (d *Draft) Back() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("back", StateDetailEntry); err != nil {
		return err
	}
	if err := d.transition("back", StateDriverSelect); err != nil {
		return err
	}
	d.driver = nil
	d.vehicle = nil
	d.vehicleNotice = ""
	d.form.ClearDriverDerived()
	d.errors = appErrors.ValidationErrors{}
	d.submitError = ""
	return nil
}

func (d *Draft) Update(patch FormPatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("edit", StateDetailEntry); err != nil {
		return err
	}
	d.form.Apply(patch)
	return nil
}

// AttachReceipt uploads the file and prefills the form from OCR. Upload
// and OCR failures are reported on the snapshot, not returned.
func (d *Draft) AttachReceipt(ctx context.Context, in receipt.UploadInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("attach receipt", StateDetailEntry); err != nil {
		return err
	}

	res, err := d.deps.receipts.Upload(ctx, in)
	if err != nil {
		if appErr, ok := appErrors.IsAppError(err); ok && appErr.Type == appErrors.ErrorTypeValidation {
			return err
		}
		d.logger().Warn("receipt upload failed, deferring to submit", "file_name", in.FileName, "error", err)
		file := in
		d.pendingFile = &file
		d.receipt = &ReceiptRef{OCR: receipt.FailedOCR(msgReceiptDeferred)}
		return nil
	}

	d.pendingFile = nil
	d.receipt = refFromUpload(res)
	if !res.OCRResult.Failed() {
		filled := d.form.Prefill(res.OCRResult, d.deps.cfg.PrefillPolicy)
		d.logger().Info("receipt prefilled form", "digest", res.Digest, "fields", filled)
	}
	return nil
}

func refFromUpload(res *receipt.UploadResult) *ReceiptRef {
	return &ReceiptRef{
		Digest:      res.Digest,
		URL:         res.ReceiptURL,
		DownloadURL: res.DownloadURL,
		OCR:         res.OCRResult,
	}
}

// Submit validates, uploads a deferred receipt, then creates the expense.
// On failure the draft stays in detail entry with the form intact.
func (d *Draft) Submit(ctx context.Context) (*expense.Expense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.require("submit", StateDetailEntry); err != nil {
		return nil, err
	}
	d.submitError = ""

	driverID := ""
	if d.driver != nil {
		driverID = d.driver.ID
	}
	if appErr := d.form.Validate(driverID, d.vehicle); appErr != nil {
		d.errors, _ = appErr.Details.(appErrors.ValidationErrors)
		metrics.IncCreate(expense.SourceWizard, metrics.ResultInvalid)
		return nil, appErr
	}
	d.errors = appErrors.ValidationErrors{}

	if d.pendingFile != nil {
		res, err := d.deps.receipts.Upload(ctx, *d.pendingFile)
		if err != nil {
			return nil, d.failSubmit("receipt upload", err)
		}
		d.pendingFile = nil
		d.receipt = refFromUpload(res)
	}

	created, err := d.deps.expenses.CreateExpense(ctx, d.form.Payload(driverID, d.vehicle, d.receipt), expense.SourceWizard)
	if err != nil {
		return nil, d.failSubmit("create expense", err)
	}

	if err := d.transition("submit", StateClosed); err != nil {
		return nil, err
	}
	d.created = created
	d.search.Close()
	d.logger().Info("draft submitted", "expense_id", created.ID, "driver_id", driverID)
	return created, nil
}

// failSubmit keeps the draft open and records the most specific message:
// the server's, then a network message, then a generic one.
func (d *Draft) failSubmit(step string, err error) error {
	d.logger().Warn("draft submission failed", "step", step, "error", err)

	if appErr, ok := appErrors.IsAppError(err); ok {
		if details, ok := appErr.Details.(appErrors.ValidationErrors); ok {
			d.errors = remapFields(details)
			d.submitError = appErr.GetDetailedMessage()
			return appErr.WithDetails(d.errors)
		}
		if appErr.Type != appErrors.ErrorTypeInternal && appErr.Message != "" {
			d.submitError = appErr.Message
			return appErr
		}
	}

	message := msgSubmitFallback
	if isNetworkError(err) {
		message = msgNetworkError
	}
	d.submitError = message
	return appErrors.NewExternalError(message, appErrors.ErrCodeSubmissionFailed, err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// payloadFields maps create-request keys onto form keys.
var payloadFields = map[string]string{
	"driverId":    FieldDriver,
	"amountFinal": FieldAmount,
}

func remapFields(v appErrors.ValidationErrors) appErrors.ValidationErrors {
	out := appErrors.ValidationErrors{Errors: make([]appErrors.ValidationError, len(v.Errors))}
	for i, e := range v.Errors {
		if field, ok := payloadFields[e.Field]; ok {
			e.Field = field
		}
		out.Errors[i] = e
	}
	return out
}

// Cancel closes the draft and drops its form and receipt reference. The
// uploaded blob itself is left in storage. Cancelling a closed draft is a
// no-op.
func (d *Draft) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.close()
}

func (d *Draft) close() {
	d.search.Close()
	if d.state.IsClosed() {
		return
	}
	_ = d.transition("cancel", StateClosed)
	d.form = NewForm(d.deps.cfg.DefaultCurrency, d.deps.cfg.DefaultType)
	d.receipt = nil
	d.pendingFile = nil
	d.driver = nil
	d.vehicle = nil
	d.errors = appErrors.ValidationErrors{}
}

func (d *Draft) touch(now time.Time) {
	d.mu.Lock()
	d.touchedAt = now
	d.mu.Unlock()
}

func (d *Draft) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touchedAt
}

func (d *Draft) Snapshot() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := &Snapshot{
		ID:            d.id,
		State:         d.state,
		Form:          *d.form,
		Dirty:         d.form.DirtyFields(),
		Search:        d.search.Result(),
		SearchPending: d.search.Pending(),
		Driver:        d.driver,
		Vehicle:       d.vehicle,
		VehicleNotice: d.vehicleNotice,
		Receipt:       d.receipt,
		SubmitError:   d.submitError,
		Expense:       d.created,
		UpdatedAt:     d.touchedAt,
	}
	snap.ReceiptPending = d.pendingFile != nil
	if d.receipt != nil && d.receipt.OCR != nil {
		snap.NeedsVerification = d.receipt.OCR.LowConfidence
	}
	if len(d.errors.Errors) > 0 {
		snap.Errors = d.errors.FieldMap()
		snap.ErrorMessages = make(map[string]string, len(snap.Errors))
		for field := range snap.Errors {
			snap.ErrorMessages[field] = d.errors.Message(field)
		}
	}
	return snap
}
