package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"elifysis/backend/internal/domain"
	"elifysis/backend/internal/store"
	"elifysis/backend/internal/xid"
)

type Store struct {
	mu                    sync.RWMutex
	products              map[string]domain.Product
	stockLogs             []domain.StockLog
	salesByID             map[string]domain.Sale
	expensesByID          map[string]domain.Expense
	customersByID         map[string]domain.Customer
	employeesByID         map[string]domain.Employee
	suppliersByID         map[string]domain.Supplier
	categoriesByID        map[string]domain.Category
	expenseCategoriesByID map[string]domain.ExpenseCategory
	settingsByBusiness    map[string]domain.Settings
	notificationsByID     map[string]domain.Notification
	auditLogs             []domain.AuditLog
	usersByUsername       map[string]domain.UserAccount
}

// New returns an empty in-memory repository.
func New() *Store {
	return &Store{
		products:              map[string]domain.Product{},
		salesByID:             map[string]domain.Sale{},
		expensesByID:          map[string]domain.Expense{},
		customersByID:         map[string]domain.Customer{},
		employeesByID:         map[string]domain.Employee{},
		suppliersByID:         map[string]domain.Supplier{},
		categoriesByID:        map[string]domain.Category{},
		expenseCategoriesByID: map[string]domain.ExpenseCategory{},
		settingsByBusiness:    map[string]domain.Settings{},
		notificationsByID:     map[string]domain.Notification{},
		usersByUsername:       map[string]domain.UserAccount{},
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers(businessID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		name     string
	}{
		{"admin", adminPwd, domain.RoleAdmin, "Store Admin"},
		{"manager", cashierPwd, domain.RoleManager, "Floor Manager"},
		{"cashier", cashierPwd, domain.RoleCashier, "Front Cashier"},
		{"sales", cashierPwd, domain.RoleSales, "Sales Associate"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[memory-store] WARNING: failed to hash seed password for %s: %v", u.username, err)
			continue
		}
		users[u.username] = domain.UserAccount{
			Username:   u.username,
			Password:   string(hash),
			Role:       u.role,
			BusinessID: businessID,
			Name:       u.name,
			Active:     true,
			CreatedAt:  now,
		}
	}
	return users
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a repository pre-populated with a demo business so the
// server is usable out of the box without PostgreSQL.
func NewSeeded() *Store {
	const businessID = "demo-business"
	s := New()
	now := time.Now().UTC()

	s.usersByUsername = seedUsers(businessID)

	s.settingsByBusiness[businessID] = domain.Settings{
		BusinessID:     businessID,
		BusinessName:   "Elify Demo Store",
		Address:        "12 Market Street",
		Phone:          "+1-555-0100",
		CurrencyCode:   "USD",
		TaxRatePercent: 0,
		ReceiptFooter:  "Thank you for shopping with us!",
		LowStockAlerts: true,
	}

	for _, name := range []string{"Beverages", "Snacks", "Household", "Stationery"} {
		c := domain.Category{ID: xid.New("cat"), BusinessID: businessID, Name: name}
		s.categoriesByID[c.ID] = c
	}
	for _, name := range []string{"Rent", "Utilities", "Supplies", "Payroll"} {
		c := domain.ExpenseCategory{ID: xid.New("excat"), BusinessID: businessID, Name: name}
		s.expenseCategoriesByID[c.ID] = c
	}

	supplier := domain.Supplier{
		ID:            xid.New("sup"),
		BusinessID:    businessID,
		Name:          "Metro Wholesale",
		ContactPerson: "Dana Reyes",
		Email:         "orders@metrowholesale.example",
		Phone:         "+1-555-0188",
		Address:       "4 Dock Road",
		CreatedAt:     now,
	}
	s.suppliersByID[supplier.ID] = supplier

	for _, p := range []struct {
		name     string
		desc     string
		qty      int
		buy      int64
		sell     int64
		category string
	}{
		{"Sparkling Water 500ml", "Case of chilled sparkling water", 48, 60, 150, "Beverages"},
		{"Cold Brew Coffee", "Bottled single-origin cold brew", 24, 250, 450, "Beverages"},
		{"Sea Salt Crisps", "Kettle-cooked potato crisps", 36, 80, 200, "Snacks"},
		{"Trail Mix 200g", "Nuts, raisins and dark chocolate", 8, 220, 400, "Snacks"},
		{"Dish Soap 1L", "Lemon-scented dish soap refill", 15, 150, 320, "Household"},
		{"Spiral Notebook A5", "80-page ruled notebook", 5, 90, 250, "Stationery"},
	} {
		product := domain.Product{
			ID:             xid.New("prod"),
			BusinessID:     businessID,
			Name:           p.name,
			Description:    p.desc,
			Quantity:       p.qty,
			BuyPriceCents:  p.buy,
			SellPriceCents: p.sell,
			Category:       p.category,
			SupplierID:     supplier.ID,
			LastUpdated:    now,
		}
		s.products[product.ID] = product
		s.stockLogs = append(s.stockLogs, domain.StockLog{
			ID:          xid.New("slog"),
			BusinessID:  businessID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Change:      p.qty,
			Type:        domain.StockLogTypeRestock,
			Date:        now,
			Balance:     p.qty,
		})
	}

	for _, c := range []struct {
		name  string
		email string
		phone string
	}{
		{"Ava Chen", "ava.chen@example.com", "+1-555-0142"},
		{"Marcus Webb", "marcus.webb@example.com", "+1-555-0167"},
	} {
		customer := domain.Customer{
			ID:         xid.New("cust"),
			BusinessID: businessID,
			Name:       c.name,
			Email:      c.email,
			Phone:      c.phone,
			CreatedAt:  now,
		}
		s.customersByID[customer.ID] = customer
	}

	return s
}

// --- products ---

func (s *Store) ListProducts(_ context.Context, businessID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if product.BusinessID == businessID {
			out = append(out, product)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, businessID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists || product.BusinessID != businessID {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.BusinessID == "" {
		return nil, fmt.Errorf("%w: product id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("%w: product %s already exists", store.ErrValidation, product.ID)
	}
	s.products[product.ID] = product
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists || existing.BusinessID != product.BusinessID {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}
	s.products[product.ID] = product
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) DeleteProduct(_ context.Context, businessID string, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists || product.BusinessID != businessID {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	delete(s.products, productID)
	return nil
}

// --- stock ledger ---

func (s *Store) AppendStockLog(_ context.Context, entry domain.StockLog) error {
	if entry.ID == "" || entry.BusinessID == "" || entry.ProductID == "" {
		return fmt.Errorf("%w: stock log id, business id and product id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockLogs = append(s.stockLogs, entry)
	return nil
}

func (s *Store) ListStockLogs(_ context.Context, businessID string, productID string) ([]domain.StockLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockLog, 0, len(s.stockLogs))
	for _, entry := range s.stockLogs {
		if entry.BusinessID != businessID {
			continue
		}
		if productID != "" && entry.ProductID != productID {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b domain.StockLog) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return out, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.BusinessID == "" || sale.TicketID == "" {
		return nil, fmt.Errorf("%w: sale id, business id and ticket id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, fmt.Errorf("%w: sale %s already exists", store.ErrValidation, sale.ID)
	}
	for _, other := range s.salesByID {
		if other.BusinessID == sale.BusinessID && other.TicketID == sale.TicketID {
			return nil, fmt.Errorf("%w: ticket %s already exists", store.ErrValidation, sale.TicketID)
		}
	}

	sale.Items = slices.Clone(sale.Items)
	s.salesByID[sale.ID] = sale
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, businessID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[saleID]
	if !exists || sale.BusinessID != businessID {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	return cloneSale(sale), nil
}

func (s *Store) GetSaleByTicket(_ context.Context, businessID string, ticketID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.salesByID {
		if sale.BusinessID == businessID && sale.TicketID == ticketID {
			return cloneSale(sale), nil
		}
	}
	return nil, fmt.Errorf("%w: ticket %s", store.ErrNotFound, ticketID)
}

// MarkSaleCompleted transitions a Pending sale to Completed and records the
// payment method. Date keeps the creation timestamp; only the ledger entries
// carry the completion instant.
func (s *Store) MarkSaleCompleted(_ context.Context, businessID string, saleID string, paymentMethod string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists || sale.BusinessID != businessID {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	if sale.Status != domain.SaleStatusPending {
		return nil, fmt.Errorf("%w: sale %s is %s", store.ErrInvalidState, saleID, sale.Status)
	}

	sale.Status = domain.SaleStatusCompleted
	sale.PaymentMethod = paymentMethod
	s.salesByID[saleID] = sale
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, businessID string, status string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if sale.BusinessID != businessID {
			continue
		}
		if status != "" && sale.Status != status {
			continue
		}
		out = append(out, *cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return out, nil
}

func (s *Store) DeleteSale(_ context.Context, businessID string, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists || sale.BusinessID != businessID {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	delete(s.salesByID, saleID)
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.BusinessID == "" {
		return nil, fmt.Errorf("%w: expense id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expensesByID[expense.ID] = expense
	copyExpense := expense
	return &copyExpense, nil
}

func (s *Store) ListExpenses(_ context.Context, businessID string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0, len(s.expensesByID))
	for _, expense := range s.expensesByID {
		if expense.BusinessID == businessID {
			out = append(out, expense)
		}
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, businessID string, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, exists := s.expensesByID[expenseID]
	if !exists || expense.BusinessID != businessID {
		return fmt.Errorf("%w: expense %s", store.ErrNotFound, expenseID)
	}
	delete(s.expensesByID, expenseID)
	return nil
}

// --- customers ---

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.BusinessID == "" {
		return nil, fmt.Errorf("%w: customer id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.customersByID[customer.ID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customersByID[customer.ID]
	if !exists || existing.BusinessID != customer.BusinessID {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, customer.ID)
	}
	customer.CreatedAt = existing.CreatedAt
	s.customersByID[customer.ID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) GetCustomer(_ context.Context, businessID string, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[customerID]
	if !exists || customer.BusinessID != businessID {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, customerID)
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, businessID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		if customer.BusinessID == businessID {
			out = append(out, customer)
		}
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, businessID string, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists || customer.BusinessID != businessID {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, customerID)
	}
	delete(s.customersByID, customerID)
	return nil
}

// --- employees ---

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	if employee.ID == "" || employee.BusinessID == "" {
		return nil, fmt.Errorf("%w: employee id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.employeesByID[employee.ID] = employee
	copyEmployee := employee
	return &copyEmployee, nil
}

func (s *Store) UpdateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.employeesByID[employee.ID]
	if !exists || existing.BusinessID != employee.BusinessID {
		return nil, fmt.Errorf("%w: employee %s", store.ErrNotFound, employee.ID)
	}
	s.employeesByID[employee.ID] = employee
	copyEmployee := employee
	return &copyEmployee, nil
}

func (s *Store) ListEmployees(_ context.Context, businessID string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Employee, 0, len(s.employeesByID))
	for _, employee := range s.employeesByID {
		if employee.BusinessID == businessID {
			out = append(out, employee)
		}
	}
	slices.SortFunc(out, func(a, b domain.Employee) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) DeleteEmployee(_ context.Context, businessID string, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employeesByID[employeeID]
	if !exists || employee.BusinessID != businessID {
		return fmt.Errorf("%w: employee %s", store.ErrNotFound, employeeID)
	}
	delete(s.employeesByID, employeeID)
	return nil
}

// --- suppliers ---

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" || supplier.BusinessID == "" {
		return nil, fmt.Errorf("%w: supplier id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.suppliersByID[supplier.ID]
	if !exists || existing.BusinessID != supplier.BusinessID {
		return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplier.ID)
	}
	supplier.CreatedAt = existing.CreatedAt
	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListSuppliers(_ context.Context, businessID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		if supplier.BusinessID == businessID {
			out = append(out, supplier)
		}
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) DeleteSupplier(_ context.Context, businessID string, supplierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier, exists := s.suppliersByID[supplierID]
	if !exists || supplier.BusinessID != businessID {
		return fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplierID)
	}
	delete(s.suppliersByID, supplierID)
	return nil
}

// --- categories ---

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.BusinessID == "" {
		return nil, fmt.Errorf("%w: category id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.categoriesByID {
		if other.BusinessID == category.BusinessID && strings.EqualFold(other.Name, category.Name) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrValidation, category.Name)
		}
	}
	s.categoriesByID[category.ID] = category
	copyCategory := category
	return &copyCategory, nil
}

func (s *Store) ListCategories(_ context.Context, businessID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categoriesByID))
	for _, category := range s.categoriesByID {
		if category.BusinessID == businessID {
			out = append(out, category)
		}
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, businessID string, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, exists := s.categoriesByID[categoryID]
	if !exists || category.BusinessID != businessID {
		return fmt.Errorf("%w: category %s", store.ErrNotFound, categoryID)
	}
	delete(s.categoriesByID, categoryID)
	return nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" || category.BusinessID == "" {
		return nil, fmt.Errorf("%w: category id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.expenseCategoriesByID {
		if other.BusinessID == category.BusinessID && strings.EqualFold(other.Name, category.Name) {
			return nil, fmt.Errorf("%w: expense category %q already exists", store.ErrValidation, category.Name)
		}
	}
	s.expenseCategoriesByID[category.ID] = category
	copyCategory := category
	return &copyCategory, nil
}

func (s *Store) ListExpenseCategories(_ context.Context, businessID string) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExpenseCategory, 0, len(s.expenseCategoriesByID))
	for _, category := range s.expenseCategoriesByID {
		if category.BusinessID == businessID {
			out = append(out, category)
		}
	}
	slices.SortFunc(out, func(a, b domain.ExpenseCategory) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) DeleteExpenseCategory(_ context.Context, businessID string, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, exists := s.expenseCategoriesByID[categoryID]
	if !exists || category.BusinessID != businessID {
		return fmt.Errorf("%w: expense category %s", store.ErrNotFound, categoryID)
	}
	delete(s.expenseCategoriesByID, categoryID)
	return nil
}

// --- settings ---

func (s *Store) GetSettings(_ context.Context, businessID string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, exists := s.settingsByBusiness[businessID]
	if !exists {
		// First read for a business gets usable defaults.
		settings = domain.Settings{
			BusinessID:     businessID,
			BusinessName:   "My Store",
			CurrencyCode:   "USD",
			LowStockAlerts: true,
		}
	}
	copySettings := settings
	return &copySettings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	if settings.BusinessID == "" {
		return nil, fmt.Errorf("%w: business id is required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsByBusiness[settings.BusinessID] = settings
	copySettings := settings
	return &copySettings, nil
}

// --- notifications ---

func (s *Store) CreateNotification(_ context.Context, notification domain.Notification) (*domain.Notification, error) {
	if notification.ID == "" || notification.BusinessID == "" {
		return nil, fmt.Errorf("%w: notification id and business id are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationsByID[notification.ID] = notification
	copyNotification := notification
	return &copyNotification, nil
}

func (s *Store) ListNotifications(_ context.Context, businessID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0, len(s.notificationsByID))
	for _, notification := range s.notificationsByID {
		if notification.BusinessID == businessID {
			out = append(out, notification)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, businessID string, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, exists := s.notificationsByID[notificationID]
	if !exists || notification.BusinessID != businessID {
		return fmt.Errorf("%w: notification %s", store.ErrNotFound, notificationID)
	}
	notification.Read = true
	s.notificationsByID[notificationID] = notification
	return nil
}

// --- audit logs ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: audit log id is required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, businessID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.BusinessID != businessID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: user %s already exists", store.ErrValidation, user.Username)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// --- helpers ---

func cloneSale(sale domain.Sale) *domain.Sale {
	copySale := sale
	copySale.Items = slices.Clone(sale.Items)
	return &copySale
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
