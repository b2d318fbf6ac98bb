package store

import (
	"context"
	"errors"
	"time"

	"elifysis/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

type Repository interface {
	ListProducts(ctx context.Context, businessID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, businessID string, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, businessID string, productID string) error

	AppendStockLog(ctx context.Context, entry domain.StockLog) error
	ListStockLogs(ctx context.Context, businessID string, productID string) ([]domain.StockLog, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, businessID string, saleID string) (*domain.Sale, error)
	GetSaleByTicket(ctx context.Context, businessID string, ticketID string) (*domain.Sale, error)
	// MarkSaleCompleted transitions a Pending sale to Completed with the given
	// payment method, leaving the creation Date untouched. It fails with
	// ErrInvalidState when the sale is not Pending.
	MarkSaleCompleted(ctx context.Context, businessID string, saleID string, paymentMethod string) (*domain.Sale, error)
	ListSales(ctx context.Context, businessID string, status string) ([]domain.Sale, error)
	DeleteSale(ctx context.Context, businessID string, saleID string) error

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, businessID string) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, businessID string, expenseID string) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, businessID string, customerID string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, businessID string, customerID string) error

	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	ListEmployees(ctx context.Context, businessID string) ([]domain.Employee, error)
	DeleteEmployee(ctx context.Context, businessID string, employeeID string) error

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error)
	DeleteSupplier(ctx context.Context, businessID string, supplierID string) error

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context, businessID string) ([]domain.Category, error)
	DeleteCategory(ctx context.Context, businessID string, categoryID string) error

	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	ListExpenseCategories(ctx context.Context, businessID string) ([]domain.ExpenseCategory, error)
	DeleteExpenseCategory(ctx context.Context, businessID string, categoryID string) error

	GetSettings(ctx context.Context, businessID string) (*domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	CreateNotification(ctx context.Context, notification domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, businessID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, businessID string, notificationID string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, businessID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
