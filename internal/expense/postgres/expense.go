package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	expenseDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/expense"
	"github.com/frahmantamala/fleet-expense/internal/expense"
)

// ExpenseRepository implements the expense.RepositoryAPI interface using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) expense.RepositoryAPI {
	return &ExpenseRepository{db: db}
}

// Create saves a new expense to the database
func (r *ExpenseRepository) Create(ctx context.Context, row *expenseDatamodel.Expense) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// GetByID retrieves an expense by its ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expenseDatamodel.Expense, error) {
	var row expenseDatamodel.Expense
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, expense.ErrExpenseNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Update saves every column of an existing expense
func (r *ExpenseRepository) Update(ctx context.Context, row *expenseDatamodel.Expense) error {
	row.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Save(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return expense.ErrExpenseNotFound
	}
	return nil
}

// List returns expenses newest first. Dates are stored as entered, so the
// range compares their calendar-day prefix.
func (r *ExpenseRepository) List(ctx context.Context, f expense.ServerFilter) ([]*expenseDatamodel.Expense, error) {
	q := r.db.WithContext(ctx).Model(&expenseDatamodel.Expense{})

	if f.DriverID != "" {
		q = q.Where("driver_id = ?", f.DriverID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.DateFrom != "" {
		q = q.Where("substr(expense_date, 1, 10) >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("substr(expense_date, 1, 10) <= ?", f.DateTo)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []*expenseDatamodel.Expense
	err := q.Order("created_at DESC").Order("id").Find(&rows).Error
	return rows, err
}
