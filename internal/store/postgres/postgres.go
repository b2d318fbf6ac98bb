package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"elifysis/backend/internal/domain"
	"elifysis/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, description, quantity, buy_price_cents, sell_price_cents, category, supplier_id, last_updated
		FROM products
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Description, &p.Quantity, &p.BuyPriceCents, &p.SellPriceCents, &p.Category, &p.SupplierID, &p.LastUpdated); err != nil {
			return nil, err
		}
		p.LastUpdated = p.LastUpdated.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, businessID string, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, description, quantity, buy_price_cents, sell_price_cents, category, supplier_id, last_updated
		FROM products
		WHERE business_id = $1 AND id = $2
	`, businessID, productID).Scan(&p.ID, &p.BusinessID, &p.Name, &p.Description, &p.Quantity, &p.BuyPriceCents, &p.SellPriceCents, &p.Category, &p.SupplierID, &p.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.BusinessID == "" {
		return nil, fmt.Errorf("%w: product id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, business_id, name, description, quantity, buy_price_cents, sell_price_cents, category, supplier_id, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.BusinessID, product.Name, product.Description, product.Quantity, product.BuyPriceCents, product.SellPriceCents, product.Category, product.SupplierID, product.LastUpdated)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %s already exists", store.ErrValidation, product.ID)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, description = $4, quantity = $5, buy_price_cents = $6, sell_price_cents = $7, category = $8, supplier_id = $9, last_updated = $10
		WHERE business_id = $1 AND id = $2
	`, product.BusinessID, product.ID, product.Name, product.Description, product.Quantity, product.BuyPriceCents, product.SellPriceCents, product.Category, product.SupplierID, product.LastUpdated)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, businessID string, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products WHERE business_id = $1 AND id = $2
	`, businessID, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	return nil
}

// --- stock ledger ---

func (s *Store) AppendStockLog(ctx context.Context, entry domain.StockLog) error {
	if entry.ID == "" || entry.BusinessID == "" || entry.ProductID == "" {
		return fmt.Errorf("%w: stock log id, business id and product id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_logs (id, business_id, product_id, product_name, change, type, date, balance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.BusinessID, entry.ProductID, entry.ProductName, entry.Change, entry.Type, entry.Date, entry.Balance)
	return err
}

func (s *Store) ListStockLogs(ctx context.Context, businessID string, productID string) ([]domain.StockLog, error) {
	query := `
		SELECT id, business_id, product_id, product_name, change, type, date, balance
		FROM stock_logs
		WHERE business_id = $1
		ORDER BY date DESC, id DESC
	`
	args := []any{businessID}
	if productID != "" {
		query = `
			SELECT id, business_id, product_id, product_name, change, type, date, balance
			FROM stock_logs
			WHERE business_id = $1 AND product_id = $2
			ORDER BY date DESC, id DESC
		`
		args = append(args, productID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockLog, 0, 128)
	for rows.Next() {
		var entry domain.StockLog
		if err := rows.Scan(&entry.ID, &entry.BusinessID, &entry.ProductID, &entry.ProductName, &entry.Change, &entry.Type, &entry.Date, &entry.Balance); err != nil {
			return nil, err
		}
		entry.Date = entry.Date.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- sales ---

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.BusinessID == "" || sale.TicketID == "" {
		return nil, fmt.Errorf("%w: sale id, business id and ticket id are required", store.ErrValidation)
	}

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, business_id, ticket_id, customer_id, customer_name, items, total_cents, date, payment_method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.BusinessID, sale.TicketID, sale.CustomerID, sale.CustomerName, items, sale.TotalCents, sale.Date, sale.PaymentMethod, sale.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: ticket %s already exists", store.ErrValidation, sale.TicketID)
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

const saleColumns = `id, business_id, ticket_id, customer_id, customer_name, items, total_cents, date, payment_method, status`

func (s *Store) GetSale(ctx context.Context, businessID string, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE business_id = $1 AND id = $2
	`, businessID, saleID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) GetSaleByTicket(ctx context.Context, businessID string, ticketID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE business_id = $1 AND ticket_id = $2
	`, businessID, ticketID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: ticket %s", store.ErrNotFound, ticketID)
		}
		return nil, err
	}
	return sale, nil
}

// MarkSaleCompleted performs the Pending -> Completed transition as a
// conditional update so concurrent completions settle a ticket exactly once.
// The date column is left alone: it records when the ticket was opened.
func (s *Store) MarkSaleCompleted(ctx context.Context, businessID string, saleID string, paymentMethod string) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $4, payment_method = $5
		WHERE business_id = $1 AND id = $2 AND status = $3
	`, businessID, saleID, domain.SaleStatusPending, domain.SaleStatusCompleted, paymentMethod)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM sales WHERE business_id = $1 AND id = $2
		`, businessID, saleID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: sale %s is %s", store.ErrInvalidState, saleID, status)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE business_id = $1 AND id = $2
	`, businessID, saleID)
	sale, err := scanSale(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, businessID string, status string) ([]domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + ` FROM sales WHERE business_id = $1 ORDER BY date DESC, id DESC
	`
	args := []any{businessID}
	if status != "" {
		query = `
			SELECT ` + saleColumns + ` FROM sales WHERE business_id = $1 AND status = $2 ORDER BY date DESC, id DESC
		`
		args = append(args, status)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) DeleteSale(ctx context.Context, businessID string, saleID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sales WHERE business_id = $1 AND id = $2
	`, businessID, saleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.BusinessID == "" {
		return nil, fmt.Errorf("%w: expense id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, business_id, description, amount_cents, category, date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, expense.ID, expense.BusinessID, expense.Description, expense.AmountCents, expense.Category, expense.Date)
	if err != nil {
		return nil, err
	}

	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, businessID string) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, description, amount_cents, category, date
		FROM expenses
		WHERE business_id = $1
		ORDER BY date DESC, id DESC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var expense domain.Expense
		if err := rows.Scan(&expense.ID, &expense.BusinessID, &expense.Description, &expense.AmountCents, &expense.Category, &expense.Date); err != nil {
			return nil, err
		}
		expense.Date = expense.Date.UTC()
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) DeleteExpense(ctx context.Context, businessID string, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM expenses WHERE business_id = $1 AND id = $2
	`, businessID, expenseID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: expense %s", store.ErrNotFound, expenseID)
	}
	return nil
}

// --- customers ---

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.BusinessID == "" {
		return nil, fmt.Errorf("%w: customer id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, business_id, name, email, phone, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, customer.ID, customer.BusinessID, customer.Name, customer.Email, customer.Phone, customer.Address, customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $3, email = $4, phone = $5, address = $6
		WHERE business_id = $1 AND id = $2
	`, customer.BusinessID, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, customer.ID)
	}

	updated := customer
	return &updated, nil
}

func (s *Store) GetCustomer(ctx context.Context, businessID string, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, email, phone, address, created_at
		FROM customers
		WHERE business_id = $1 AND id = $2
	`, businessID, customerID).Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.Email, &customer.Phone, &customer.Address, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, customerID)
		}
		return nil, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, email, phone, address, created_at
		FROM customers
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.Email, &customer.Phone, &customer.Address, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, businessID string, customerID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM customers WHERE business_id = $1 AND id = $2
	`, businessID, customerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, customerID)
	}
	return nil
}

// --- employees ---

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	if employee.ID == "" || employee.BusinessID == "" {
		return nil, fmt.Errorf("%w: employee id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, business_id, name, role, email, phone, salary_cents, join_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, employee.ID, employee.BusinessID, employee.Name, employee.Role, employee.Email, employee.Phone, employee.SalaryCents, employee.JoinDate)
	if err != nil {
		return nil, err
	}

	created := employee
	return &created, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET name = $3, role = $4, email = $5, phone = $6, salary_cents = $7, join_date = $8
		WHERE business_id = $1 AND id = $2
	`, employee.BusinessID, employee.ID, employee.Name, employee.Role, employee.Email, employee.Phone, employee.SalaryCents, employee.JoinDate)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: employee %s", store.ErrNotFound, employee.ID)
	}

	updated := employee
	return &updated, nil
}

func (s *Store) ListEmployees(ctx context.Context, businessID string) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, role, email, phone, salary_cents, join_date
		FROM employees
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 32)
	for rows.Next() {
		var employee domain.Employee
		if err := rows.Scan(&employee.ID, &employee.BusinessID, &employee.Name, &employee.Role, &employee.Email, &employee.Phone, &employee.SalaryCents, &employee.JoinDate); err != nil {
			return nil, err
		}
		employee.JoinDate = employee.JoinDate.UTC()
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, businessID string, employeeID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM employees WHERE business_id = $1 AND id = $2
	`, businessID, employeeID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: employee %s", store.ErrNotFound, employeeID)
	}
	return nil
}

// --- suppliers ---

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" || supplier.BusinessID == "" {
		return nil, fmt.Errorf("%w: supplier id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, business_id, name, contact_person, email, phone, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, supplier.ID, supplier.BusinessID, supplier.Name, supplier.ContactPerson, supplier.Email, supplier.Phone, supplier.Address, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $3, contact_person = $4, email = $5, phone = $6, address = $7
		WHERE business_id = $1 AND id = $2
	`, supplier.BusinessID, supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Email, supplier.Phone, supplier.Address)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplier.ID)
	}

	updated := supplier
	return &updated, nil
}

func (s *Store) ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, contact_person, email, phone, address, created_at
		FROM suppliers
		WHERE business_id = $1
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.BusinessID, &supplier.Name, &supplier.ContactPerson, &supplier.Email, &supplier.Phone, &supplier.Address, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, businessID string, supplierID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM suppliers WHERE business_id = $1 AND id = $2
	`, businessID, supplierID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplierID)
	}
	return nil
}

// --- categories ---

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.BusinessID == "" {
		return nil, fmt.Errorf("%w: category id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, business_id, name)
		VALUES ($1,$2,$3)
	`, category.ID, category.BusinessID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrValidation, category.Name)
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context, businessID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name FROM categories WHERE business_id = $1 ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.BusinessID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) DeleteCategory(ctx context.Context, businessID string, categoryID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM categories WHERE business_id = $1 AND id = $2
	`, businessID, categoryID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: category %s", store.ErrNotFound, categoryID)
	}
	return nil
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" || category.BusinessID == "" {
		return nil, fmt.Errorf("%w: category id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, business_id, name)
		VALUES ($1,$2,$3)
	`, category.ID, category.BusinessID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: expense category %q already exists", store.ErrValidation, category.Name)
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(ctx context.Context, businessID string) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name FROM expense_categories WHERE business_id = $1 ORDER BY name
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ExpenseCategory, 0, 16)
	for rows.Next() {
		var category domain.ExpenseCategory
		if err := rows.Scan(&category.ID, &category.BusinessID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) DeleteExpenseCategory(ctx context.Context, businessID string, categoryID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM expense_categories WHERE business_id = $1 AND id = $2
	`, businessID, categoryID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: expense category %s", store.ErrNotFound, categoryID)
	}
	return nil
}

// --- settings ---

func (s *Store) GetSettings(ctx context.Context, businessID string) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT business_id, business_name, address, phone, currency_code, tax_rate_percent, receipt_footer, low_stock_alerts
		FROM settings
		WHERE business_id = $1
	`, businessID).Scan(&settings.BusinessID, &settings.BusinessName, &settings.Address, &settings.Phone, &settings.CurrencyCode, &settings.TaxRatePercent, &settings.ReceiptFooter, &settings.LowStockAlerts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Settings{
				BusinessID:     businessID,
				BusinessName:   "My Store",
				CurrencyCode:   "USD",
				LowStockAlerts: true,
			}, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	if settings.BusinessID == "" {
		return nil, fmt.Errorf("%w: business id is required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (business_id, business_name, address, phone, currency_code, tax_rate_percent, receipt_footer, low_stock_alerts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (business_id)
		DO UPDATE SET business_name = $2, address = $3, phone = $4, currency_code = $5, tax_rate_percent = $6, receipt_footer = $7, low_stock_alerts = $8
	`, settings.BusinessID, settings.BusinessName, settings.Address, settings.Phone, settings.CurrencyCode, settings.TaxRatePercent, settings.ReceiptFooter, settings.LowStockAlerts)
	if err != nil {
		return nil, err
	}

	saved := settings
	return &saved, nil
}

// --- notifications ---

func (s *Store) CreateNotification(ctx context.Context, notification domain.Notification) (*domain.Notification, error) {
	if notification.ID == "" || notification.BusinessID == "" {
		return nil, fmt.Errorf("%w: notification id and business id are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, business_id, message, type, read, date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, notification.ID, notification.BusinessID, notification.Message, notification.Type, notification.Read, notification.Date)
	if err != nil {
		return nil, err
	}

	created := notification
	return &created, nil
}

func (s *Store) ListNotifications(ctx context.Context, businessID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, message, type, read, date
		FROM notifications
		WHERE business_id = $1
		ORDER BY date DESC, id DESC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0, 32)
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(&notification.ID, &notification.BusinessID, &notification.Message, &notification.Type, &notification.Read, &notification.Date); err != nil {
			return nil, err
		}
		notification.Date = notification.Date.UTC()
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, businessID string, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = true WHERE business_id = $1 AND id = $2
	`, businessID, notificationID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: notification %s", store.ErrNotFound, notificationID)
	}
	return nil
}

// --- audit logs ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: audit log id is required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, business_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BusinessID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, businessID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, businessID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BusinessID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, business_id, name, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.Username, user.Password, user.Role, user.BusinessID, user.Name, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s already exists", store.ErrValidation, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, business_id, name, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.BusinessID, &user.Name, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var items []byte
	var paymentMethod sql.NullString
	if err := row.Scan(&sale.ID, &sale.BusinessID, &sale.TicketID, &sale.CustomerID, &sale.CustomerName, &items, &sale.TotalCents, &sale.Date, &paymentMethod, &sale.Status); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &sale.Items); err != nil {
			return nil, fmt.Errorf("decode sale items %s: %w", sale.ID, err)
		}
	}
	sale.PaymentMethod = paymentMethod.String
	sale.Date = sale.Date.UTC()
	return &sale, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
