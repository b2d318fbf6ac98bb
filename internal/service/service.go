package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"elifysis/backend/internal/cache"
	"elifysis/backend/internal/domain"
	"elifysis/backend/internal/importer"
	"elifysis/backend/internal/reporting"
	"elifysis/backend/internal/store"
	"elifysis/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	dashboards        cache.DashboardCache
	dashboardTTL      time.Duration
	defaultBusinessID string
}

func New(repo store.Repository, dashboards cache.DashboardCache, dashboardTTL time.Duration, defaultBusinessID string) *Service {
	if dashboards == nil {
		dashboards = cache.NoopDashboardCache{}
	}
	if dashboardTTL <= 0 {
		dashboardTTL = 30 * time.Second
	}
	if defaultBusinessID == "" {
		defaultBusinessID = "demo-business"
	}

	return &Service{
		repo:              repo,
		dashboards:        dashboards,
		dashboardTTL:      dashboardTTL,
		defaultBusinessID: defaultBusinessID,
	}
}

func (s *Service) business(businessID string) string {
	if businessID == "" {
		return s.defaultBusinessID
	}
	return businessID
}

func (s *Service) requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, errors.New("authentication required")
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%s role required", strings.Join(roles, " or "))
}

// --- catalog ---

func (s *Service) ListProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.business(businessID))
}

func (s *Service) GetProduct(ctx context.Context, businessID string, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, s.business(businessID), strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, businessID string, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	businessID = s.business(businessID)

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	if req.SellPriceCents < 1 || req.BuyPriceCents < 0 || req.Quantity < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices and quantity must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		ID:             xid.New("prod"),
		BusinessID:     businessID,
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		Quantity:       req.Quantity,
		BuyPriceCents:  req.BuyPriceCents,
		SellPriceCents: req.SellPriceCents,
		Category:       req.Category,
		SupplierID:     strings.TrimSpace(req.SupplierID),
		LastUpdated:    time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, businessID, "product_create", "product", created.ID, fmt.Sprintf("name=%s,sell=%d,qty=%d", created.Name, created.SellPriceCents, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, businessID string, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	businessID = s.business(businessID)

	existing, err := s.repo.GetProduct(ctx, businessID, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.BuyPriceCents != nil {
		if *req.BuyPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: buy price must not be negative", store.ErrValidation)
		}
		updated.BuyPriceCents = *req.BuyPriceCents
	}
	if req.SellPriceCents != nil {
		if *req.SellPriceCents < 1 {
			return domain.Product{}, fmt.Errorf("%w: sell price must be positive", store.ErrValidation)
		}
		updated.SellPriceCents = *req.SellPriceCents
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.SupplierID != nil {
		updated.SupplierID = strings.TrimSpace(*req.SupplierID)
	}
	updated.LastUpdated = time.Now().UTC()

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, businessID, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,buy=%d,sell=%d", saved.Name, saved.BuyPriceCents, saved.SellPriceCents))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, businessID string, productID string) error {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	businessID = s.business(businessID)

	if err := s.repo.DeleteProduct(ctx, businessID, strings.TrimSpace(productID)); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "product_delete", "product", productID, "")
	return nil
}

// --- stock ledger ---

// AdjustStock applies a manual quantity change and appends the matching
// ledger entry. The delta may be negative; the resulting quantity is not
// floored at zero.
func (s *Service) AdjustStock(ctx context.Context, businessID string, productID string, req domain.StockAdjustRequest) (domain.Product, domain.StockLog, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, domain.StockLog{}, err
	}
	businessID = s.business(businessID)

	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Type != domain.StockLogTypeRestock && req.Type != domain.StockLogTypeAdjustment {
		return domain.Product{}, domain.StockLog{}, fmt.Errorf("%w: type must be restock or adjustment", store.ErrValidation)
	}

	product, err := s.repo.GetProduct(ctx, businessID, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, domain.StockLog{}, err
	}

	now := time.Now().UTC()
	product.Quantity += req.Delta
	product.LastUpdated = now
	saved, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return domain.Product{}, domain.StockLog{}, err
	}

	entry := domain.StockLog{
		ID:          xid.New("slog"),
		BusinessID:  businessID,
		ProductID:   saved.ID,
		ProductName: saved.Name,
		Change:      req.Delta,
		Type:        req.Type,
		Date:        now,
		Balance:     saved.Quantity,
	}
	if err := s.repo.AppendStockLog(ctx, entry); err != nil {
		return domain.Product{}, domain.StockLog{}, err
	}

	s.maybeNotifyLowStock(ctx, *saved)
	s.logAudit(ctx, businessID, "stock_adjust", "product", saved.ID, fmt.Sprintf("delta=%d,type=%s,balance=%d", req.Delta, req.Type, saved.Quantity))
	return *saved, entry, nil
}

func (s *Service) StockHistory(ctx context.Context, businessID string, productID string) ([]domain.StockLog, error) {
	return s.repo.ListStockLogs(ctx, s.business(businessID), strings.TrimSpace(productID))
}

// DerivedStockAt reconstructs a product's quantity at a past instant from
// the current quantity and the ledger entries recorded after it.
func (s *Service) DerivedStockAt(ctx context.Context, businessID string, productID string, at time.Time) (int, error) {
	businessID = s.business(businessID)
	productID = strings.TrimSpace(productID)

	product, err := s.repo.GetProduct(ctx, businessID, productID)
	if err != nil {
		return 0, err
	}
	logs, err := s.repo.ListStockLogs(ctx, businessID, productID)
	if err != nil {
		return 0, err
	}
	return reporting.DeriveStockAt(product.Quantity, logs, productID, at), nil
}

// --- order workflow ---

// CreateTicket opens a Pending sale. No stock moves until the order is
// completed at the cashier.
func (s *Service) CreateTicket(ctx context.Context, businessID string, req domain.TicketCreateRequest) (domain.Sale, error) {
	businessID = s.business(businessID)

	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: ticket needs at least one item", store.ErrValidation)
	}

	customerName := "Walk-in Customer"
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" {
		customer, err := s.repo.GetCustomer(ctx, businessID, customerID)
		if err != nil {
			return domain.Sale{}, err
		}
		customerName = customer.Name
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	total := int64(0)
	for _, line := range req.Items {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" || line.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: item product id and quantity are required", store.ErrValidation)
		}
		product, err := s.repo.GetProduct(ctx, businessID, productID)
		if err != nil {
			return domain.Sale{}, err
		}
		item := domain.SaleItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.SellPriceCents,
			TotalCents:     int64(line.Quantity) * product.SellPriceCents,
		}
		items = append(items, item)
		total += item.TotalCents
	}

	sale := domain.Sale{
		ID:           xid.New("sale"),
		BusinessID:   businessID,
		TicketID:     xid.Ticket(),
		CustomerID:   customerID,
		CustomerName: customerName,
		Items:        items,
		TotalCents:   total,
		Date:         time.Now().UTC(),
		Status:       domain.SaleStatusPending,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, businessID, "ticket_create", "sale", created.ID, fmt.Sprintf("ticket=%s,total=%d,items=%d", created.TicketID, created.TotalCents, len(created.Items)))
	return *created, nil
}

// CompleteOrder settles a Pending ticket: it records the payment method,
// decrements stock per line item and appends the sale entries to the
// ledger. Line items whose product has been deleted since the ticket was
// opened are reported back instead of being silently skipped.
func (s *Service) CompleteOrder(ctx context.Context, businessID string, saleID string, req domain.CompleteOrderRequest) (domain.CompleteOrderResponse, error) {
	businessID = s.business(businessID)

	method := strings.TrimSpace(req.PaymentMethod)
	if !isSupportedPaymentMethod(method) {
		return domain.CompleteOrderResponse{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, method)
	}

	now := time.Now().UTC()
	sale, err := s.repo.MarkSaleCompleted(ctx, businessID, strings.TrimSpace(saleID), method)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return domain.CompleteOrderResponse{}, fmt.Errorf("%w: sale is already completed", store.ErrInvalidState)
		}
		return domain.CompleteOrderResponse{}, err
	}

	resp := domain.CompleteOrderResponse{
		Sale:    *sale,
		Applied: make([]domain.SaleItem, 0, len(sale.Items)),
	}
	for _, item := range sale.Items {
		product, err := s.repo.GetProduct(ctx, businessID, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.Missing = append(resp.Missing, item)
				continue
			}
			return domain.CompleteOrderResponse{}, err
		}

		product.Quantity -= item.Quantity
		product.LastUpdated = now
		saved, err := s.repo.UpdateProduct(ctx, *product)
		if err != nil {
			return domain.CompleteOrderResponse{}, err
		}

		if err := s.repo.AppendStockLog(ctx, domain.StockLog{
			ID:          xid.New("slog"),
			BusinessID:  businessID,
			ProductID:   saved.ID,
			ProductName: saved.Name,
			Change:      -item.Quantity,
			Type:        domain.StockLogTypeSale,
			Date:        now,
			Balance:     saved.Quantity,
		}); err != nil {
			return domain.CompleteOrderResponse{}, err
		}

		s.maybeNotifyLowStock(ctx, *saved)
		resp.Applied = append(resp.Applied, item)
	}

	s.logAudit(ctx, businessID, "order_complete", "sale", sale.ID, fmt.Sprintf("ticket=%s,payment=%s,applied=%d,missing=%d", sale.TicketID, method, len(resp.Applied), len(resp.Missing)))
	return resp, nil
}

func (s *Service) PendingOrders(ctx context.Context, businessID string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, s.business(businessID), domain.SaleStatusPending)
}

func (s *Service) CompletedSales(ctx context.Context, businessID string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, s.business(businessID), domain.SaleStatusCompleted)
}

func (s *Service) SaleByTicket(ctx context.Context, businessID string, ticketID string) (domain.Sale, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return domain.Sale{}, fmt.Errorf("%w: ticket id is required", store.ErrValidation)
	}
	sale, err := s.repo.GetSaleByTicket(ctx, s.business(businessID), ticketID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// VoidTicket discards a Pending sale. Completed sales are immutable.
func (s *Service) VoidTicket(ctx context.Context, businessID string, saleID string) error {
	businessID = s.business(businessID)

	sale, err := s.repo.GetSale(ctx, businessID, strings.TrimSpace(saleID))
	if err != nil {
		return err
	}
	if sale.Status != domain.SaleStatusPending {
		return fmt.Errorf("%w: only pending tickets can be voided", store.ErrInvalidState)
	}

	if err := s.repo.DeleteSale(ctx, businessID, sale.ID); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "ticket_void", "sale", sale.ID, fmt.Sprintf("ticket=%s", sale.TicketID))
	return nil
}

// --- expenses ---

func (s *Service) AddExpense(ctx context.Context, businessID string, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	businessID = s.business(businessID)

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return domain.Expense{}, fmt.Errorf("%w: description is required", store.ErrValidation)
	}
	if req.AmountCents < 1 {
		return domain.Expense{}, fmt.Errorf("%w: amount must be positive", store.ErrValidation)
	}

	date := time.Now().UTC()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return domain.Expense{}, fmt.Errorf("%w: invalid date %q", store.ErrValidation, req.Date)
		}
		date = parsed.UTC()
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		BusinessID:  businessID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Category:    strings.TrimSpace(req.Category),
		Date:        date,
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, businessID, "expense_add", "expense", created.ID, fmt.Sprintf("amount=%d,category=%s", created.AmountCents, created.Category))
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, businessID string) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, s.business(businessID))
}

func (s *Service) DeleteExpense(ctx context.Context, businessID string, expenseID string) error {
	businessID = s.business(businessID)
	if err := s.repo.DeleteExpense(ctx, businessID, strings.TrimSpace(expenseID)); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "expense_delete", "expense", expenseID, "")
	return nil
}

// --- customers, employees, suppliers ---

func (s *Service) CreateCustomer(ctx context.Context, businessID string, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	businessID = s.business(businessID)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	customer := domain.Customer{
		ID:         xid.New("cust"),
		BusinessID: businessID,
		Name:       req.Name,
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		CreatedAt:  time.Now().UTC(),
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, businessID, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, businessID string, customerID string, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	businessID = s.business(businessID)

	existing, err := s.repo.GetCustomer(ctx, businessID, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	updated := *existing
	updated.Name = req.Name
	updated.Email = strings.TrimSpace(req.Email)
	updated.Phone = strings.TrimSpace(req.Phone)
	updated.Address = strings.TrimSpace(req.Address)

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, businessID, "customer_update", "customer", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, s.business(businessID))
}

func (s *Service) DeleteCustomer(ctx context.Context, businessID string, customerID string) error {
	businessID = s.business(businessID)
	if err := s.repo.DeleteCustomer(ctx, businessID, strings.TrimSpace(customerID)); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "customer_delete", "customer", customerID, "")
	return nil
}

func (s *Service) CreateEmployee(ctx context.Context, businessID string, req domain.EmployeeUpsertRequest) (domain.Employee, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Employee{}, err
	}
	businessID = s.business(businessID)

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Employee{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	joinDate, err := parseDateOrNow(req.JoinDate)
	if err != nil {
		return domain.Employee{}, err
	}

	employee := domain.Employee{
		ID:          xid.New("emp"),
		BusinessID:  businessID,
		Name:        req.Name,
		Role:        strings.TrimSpace(req.Role),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		SalaryCents: req.SalaryCents,
		JoinDate:    joinDate,
	}
	created, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, businessID, "employee_create", "employee", created.ID, fmt.Sprintf("name=%s,role=%s", created.Name, created.Role))
	return *created, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, businessID string, employeeID string, req domain.EmployeeUpsertRequest) (domain.Employee, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Employee{}, err
	}
	businessID = s.business(businessID)

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Employee{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	joinDate, err := parseDateOrNow(req.JoinDate)
	if err != nil {
		return domain.Employee{}, err
	}

	updated := domain.Employee{
		ID:          strings.TrimSpace(employeeID),
		BusinessID:  businessID,
		Name:        req.Name,
		Role:        strings.TrimSpace(req.Role),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		SalaryCents: req.SalaryCents,
		JoinDate:    joinDate,
	}
	saved, err := s.repo.UpdateEmployee(ctx, updated)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, businessID, "employee_update", "employee", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListEmployees(ctx context.Context, businessID string) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx, s.business(businessID))
}

func (s *Service) DeleteEmployee(ctx context.Context, businessID string, employeeID string) error {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return err
	}
	businessID = s.business(businessID)
	if err := s.repo.DeleteEmployee(ctx, businessID, strings.TrimSpace(employeeID)); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "employee_delete", "employee", employeeID, "")
	return nil
}

func (s *Service) CreateSupplier(ctx context.Context, businessID string, req domain.SupplierUpsertRequest) (domain.Supplier, error) {
	businessID = s.business(businessID)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	supplier := domain.Supplier{
		ID:            xid.New("sup"),
		BusinessID:    businessID,
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, businessID, "supplier_create", "supplier", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, businessID string, supplierID string, req domain.SupplierUpsertRequest) (domain.Supplier, error) {
	businessID = s.business(businessID)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	updated := domain.Supplier{
		ID:            strings.TrimSpace(supplierID),
		BusinessID:    businessID,
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
	}
	saved, err := s.repo.UpdateSupplier(ctx, updated)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, businessID, "supplier_update", "supplier", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context, businessID string) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx, s.business(businessID))
}

func (s *Service) DeleteSupplier(ctx context.Context, businessID string, supplierID string) error {
	businessID = s.business(businessID)
	if err := s.repo.DeleteSupplier(ctx, businessID, strings.TrimSpace(supplierID)); err != nil {
		return err
	}
	s.logAudit(ctx, businessID, "supplier_delete", "supplier", supplierID, "")
	return nil
}

// --- categories ---

func (s *Service) CreateCategory(ctx context.Context, businessID string, req domain.CategoryCreateRequest) (domain.Category, error) {
	businessID = s.business(businessID)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:         xid.New("cat"),
		BusinessID: businessID,
		Name:       name,
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context, businessID string) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, s.business(businessID))
}

func (s *Service) DeleteCategory(ctx context.Context, businessID string, categoryID string) error {
	return s.repo.DeleteCategory(ctx, s.business(businessID), strings.TrimSpace(categoryID))
}

func (s *Service) CreateExpenseCategory(ctx context.Context, businessID string, req domain.CategoryCreateRequest) (domain.ExpenseCategory, error) {
	businessID = s.business(businessID)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ExpenseCategory{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateExpenseCategory(ctx, domain.ExpenseCategory{
		ID:         xid.New("excat"),
		BusinessID: businessID,
		Name:       name,
	})
	if err != nil {
		return domain.ExpenseCategory{}, err
	}
	return *created, nil
}

func (s *Service) ListExpenseCategories(ctx context.Context, businessID string) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx, s.business(businessID))
}

func (s *Service) DeleteExpenseCategory(ctx context.Context, businessID string, categoryID string) error {
	return s.repo.DeleteExpenseCategory(ctx, s.business(businessID), strings.TrimSpace(categoryID))
}

// --- settings and notifications ---

func (s *Service) GetSettings(ctx context.Context, businessID string) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx, s.business(businessID))
	if err != nil {
		return domain.Settings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, businessID string, req domain.Settings) (domain.Settings, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Settings{}, err
	}
	businessID = s.business(businessID)

	req.BusinessID = businessID
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if req.BusinessName == "" {
		return domain.Settings{}, fmt.Errorf("%w: business name is required", store.ErrValidation)
	}
	if req.TaxRatePercent < 0 || req.TaxRatePercent > 100 {
		return domain.Settings{}, fmt.Errorf("%w: tax rate must be between 0 and 100", store.ErrValidation)
	}
	if strings.TrimSpace(req.CurrencyCode) == "" {
		req.CurrencyCode = "USD"
	}

	saved, err := s.repo.SaveSettings(ctx, req)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logAudit(ctx, businessID, "settings_update", "settings", businessID, fmt.Sprintf("name=%s,tax=%.2f", saved.BusinessName, saved.TaxRatePercent))
	return *saved, nil
}

func (s *Service) ListNotifications(ctx context.Context, businessID string) ([]domain.Notification, error) {
	return s.repo.ListNotifications(ctx, s.business(businessID))
}

func (s *Service) MarkNotificationRead(ctx context.Context, businessID string, notificationID string) error {
	return s.repo.MarkNotificationRead(ctx, s.business(businessID), strings.TrimSpace(notificationID))
}

// maybeNotifyLowStock raises a single unread advisory per product when its
// quantity drops under the threshold.
func (s *Service) maybeNotifyLowStock(ctx context.Context, product domain.Product) {
	if product.Quantity >= reporting.LowStockThreshold {
		return
	}
	if settings, err := s.repo.GetSettings(ctx, product.BusinessID); err == nil && !settings.LowStockAlerts {
		return
	}

	existing, err := s.repo.ListNotifications(ctx, product.BusinessID)
	if err != nil {
		log.Printf("[service] WARN: failed to list notifications for low stock check: %v", err)
		return
	}
	marker := fmt.Sprintf("[%s]", product.ID)
	for _, n := range existing {
		if n.Type == domain.NotificationTypeLowStock && !n.Read && strings.Contains(n.Message, marker) {
			return
		}
	}

	if _, err := s.repo.CreateNotification(ctx, domain.Notification{
		ID:         xid.New("ntf"),
		BusinessID: product.BusinessID,
		Message:    fmt.Sprintf("%s %s is running low: %d left", marker, product.Name, product.Quantity),
		Type:       domain.NotificationTypeLowStock,
		Date:       time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to create low stock notification product=%s: %v", product.ID, err)
	}
}

// --- reports ---

func (s *Service) ProductPerformance(ctx context.Context, businessID string, fromRaw string, toRaw string) (domain.ProductPerformanceReport, error) {
	businessID = s.business(businessID)
	from, to, err := parseDateRange(fromRaw, toRaw)
	if err != nil {
		return domain.ProductPerformanceReport{}, err
	}

	products, sales, logs, err := s.reportInputs(ctx, businessID)
	if err != nil {
		return domain.ProductPerformanceReport{}, err
	}

	return domain.ProductPerformanceReport{
		BusinessID: businessID,
		From:       from.Format("2006-01-02"),
		To:         to.Add(-time.Second).Format("2006-01-02"),
		Rows:       reporting.ProductPerformance(products, sales, logs, from, to),
	}, nil
}

func (s *Service) GrossIncome(ctx context.Context, businessID string, fromRaw string, toRaw string) (domain.GrossIncomeReport, error) {
	businessID = s.business(businessID)
	from, to, err := parseDateRange(fromRaw, toRaw)
	if err != nil {
		return domain.GrossIncomeReport{}, err
	}

	products, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return domain.GrossIncomeReport{}, err
	}
	sales, err := s.repo.ListSales(ctx, businessID, domain.SaleStatusCompleted)
	if err != nil {
		return domain.GrossIncomeReport{}, err
	}

	revenue, gross, count := reporting.GrossIncome(products, sales, from, to)
	return domain.GrossIncomeReport{
		BusinessID:       businessID,
		From:             from.Format("2006-01-02"),
		To:               to.Add(-time.Second).Format("2006-01-02"),
		RevenueCents:     revenue,
		GrossIncomeCents: gross,
		SaleCount:        count,
	}, nil
}

func (s *Service) StockMovement(ctx context.Context, businessID string, fromRaw string, toRaw string, productID string) (domain.StockMovementReport, error) {
	businessID = s.business(businessID)
	from, to, err := parseDateRange(fromRaw, toRaw)
	if err != nil {
		return domain.StockMovementReport{}, err
	}

	products, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return domain.StockMovementReport{}, err
	}
	logs, err := s.repo.ListStockLogs(ctx, businessID, "")
	if err != nil {
		return domain.StockMovementReport{}, err
	}

	return domain.StockMovementReport{
		BusinessID: businessID,
		From:       from.Format("2006-01-02"),
		To:         to.Add(-time.Second).Format("2006-01-02"),
		Rows:       reporting.StockMovement(products, logs, from, to, strings.TrimSpace(productID)),
	}, nil
}

func (s *Service) LowStockProducts(ctx context.Context, businessID string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, s.business(businessID))
	if err != nil {
		return nil, err
	}
	return reporting.LowStock(products), nil
}

func (s *Service) DashboardStats(ctx context.Context, businessID string) (domain.DashboardStats, error) {
	businessID = s.business(businessID)
	cacheKey := "dashboard:" + businessID

	if cached, ok, err := s.dashboards.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	}

	products, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	customers, err := s.repo.ListCustomers(ctx, businessID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	sales, err := s.repo.ListSales(ctx, businessID, "")
	if err != nil {
		return domain.DashboardStats{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, businessID)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := reporting.Dashboard(businessID, products, len(customers), sales, expenses, time.Now())
	if err := s.dashboards.Set(ctx, cacheKey, &stats, s.dashboardTTL); err != nil {
		log.Printf("[service] WARN: failed to cache dashboard stats business=%s: %v", businessID, err)
	}
	return stats, nil
}

func (s *Service) reportInputs(ctx context.Context, businessID string) ([]domain.Product, []domain.Sale, []domain.StockLog, error) {
	products, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return nil, nil, nil, err
	}
	sales, err := s.repo.ListSales(ctx, businessID, domain.SaleStatusCompleted)
	if err != nil {
		return nil, nil, nil, err
	}
	logs, err := s.repo.ListStockLogs(ctx, businessID, "")
	if err != nil {
		return nil, nil, nil, err
	}
	return products, sales, logs, nil
}

// --- csv import ---

// PreviewProductImport stages an uploaded CSV without writing anything.
func (s *Service) PreviewProductImport(ctx context.Context, businessID string, r io.Reader) (domain.ImportPreview, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.ImportPreview{}, err
	}
	businessID = s.business(businessID)

	rows, rowErrors, err := importer.Parse(r)
	if err != nil {
		return domain.ImportPreview{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	existing, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return domain.ImportPreview{}, err
	}

	preview := importer.Plan(rows, existing)
	preview.Errors = rowErrors
	return preview, nil
}

// ImportProducts inserts the non-duplicate rows of an uploaded CSV. It is
// the confirmation step after PreviewProductImport; duplicates are counted
// as skipped, never inserted.
func (s *Service) ImportProducts(ctx context.Context, businessID string, r io.Reader) (domain.ImportResult, error) {
	if _, err := s.requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.ImportResult{}, err
	}
	businessID = s.business(businessID)

	rows, rowErrors, err := importer.Parse(r)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	existing, err := s.repo.ListProducts(ctx, businessID)
	if err != nil {
		return domain.ImportResult{}, err
	}
	preview := importer.Plan(rows, existing)

	supplierIDs, err := s.supplierIDsByName(ctx, businessID)
	if err != nil {
		return domain.ImportResult{}, err
	}

	result := domain.ImportResult{
		Skipped: len(preview.Duplicates),
		Errors:  rowErrors,
	}
	now := time.Now().UTC()
	for _, row := range preview.NewRows {
		product := domain.Product{
			ID:             xid.New("prod"),
			BusinessID:     businessID,
			Name:           row.Name,
			Description:    row.Description,
			Quantity:       row.Quantity,
			BuyPriceCents:  row.BuyPriceCents,
			SellPriceCents: row.SellPriceCents,
			Category:       row.Category,
			SupplierID:     supplierIDs[strings.ToLower(row.Supplier)],
			LastUpdated:    now,
		}
		if _, err := s.repo.CreateProduct(ctx, product); err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Line: row.Line, Message: err.Error()})
			continue
		}
		result.Imported++
	}

	s.logAudit(ctx, businessID, "product_import", "product", "", fmt.Sprintf("imported=%d,skipped=%d,errors=%d", result.Imported, result.Skipped, len(result.Errors)))
	return result, nil
}

func (s *Service) supplierIDsByName(ctx context.Context, businessID string) (map[string]string, error) {
	suppliers, err := s.repo.ListSuppliers(ctx, businessID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(suppliers))
	for _, supplier := range suppliers {
		byName[strings.ToLower(supplier.Name)] = supplier.ID
	}
	return byName, nil
}

// --- audit ---

func (s *Service) ListAuditLogs(ctx context.Context, businessID string, date string, limit int) ([]domain.AuditLog, error) {
	businessID = s.business(businessID)
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", store.ErrValidation, date)
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, businessID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, businessID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BusinessID:    businessID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// --- helpers ---

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

func parseDateOrNow(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", store.ErrValidation, raw)
	}
	return parsed.UTC(), nil
}

// parseDateRange turns YYYY-MM-DD bounds into a half-open [from, to)
// interval. Defaults cover the last 30 days.
func parseDateRange(fromRaw string, toRaw string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-30 * 24 * time.Hour)
	to := now

	if strings.TrimSpace(fromRaw) != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid from date %q", store.ErrValidation, fromRaw)
		}
		from = parsed.UTC()
	}
	if strings.TrimSpace(toRaw) != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid to date %q", store.ErrValidation, toRaw)
		}
		to = parsed.UTC().Add(24 * time.Hour)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to date precedes from date", store.ErrValidation)
	}
	return from, to, nil
}
