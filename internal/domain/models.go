package domain

import "time"

type Product struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Quantity       int       `json:"quantity"`
	BuyPriceCents  int64     `json:"buy_price_cents"`
	SellPriceCents int64     `json:"sell_price_cents"`
	Category       string    `json:"category"`
	SupplierID     string    `json:"supplier_id,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

type ProductCreateRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Quantity       int    `json:"quantity"`
	BuyPriceCents  int64  `json:"buy_price_cents"`
	SellPriceCents int64  `json:"sell_price_cents"`
	Category       string `json:"category"`
	SupplierID     string `json:"supplier_id,omitempty"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	BuyPriceCents  *int64  `json:"buy_price_cents,omitempty"`
	SellPriceCents *int64  `json:"sell_price_cents,omitempty"`
	Category       *string `json:"category,omitempty"`
	SupplierID     *string `json:"supplier_id,omitempty"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	BusinessID    string     `json:"business_id"`
	TicketID      string     `json:"ticket_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name"`
	Items         []SaleItem `json:"items"`
	TotalCents    int64      `json:"total_cents"`
	Date          time.Time  `json:"date"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Status        string     `json:"status"`
}

type TicketItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type TicketCreateRequest struct {
	CustomerID string              `json:"customer_id,omitempty"`
	Items      []TicketItemRequest `json:"items"`
}

type CompleteOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// CompleteOrderResponse enumerates the line items whose stock effects were
// applied and those that referenced products no longer in the catalog.
type CompleteOrderResponse struct {
	Sale    Sale       `json:"sale"`
	Applied []SaleItem `json:"applied"`
	Missing []SaleItem `json:"missing,omitempty"`
}

type StockLog struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Change      int       `json:"change"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	Balance     int       `json:"balance"`
}

type StockAdjustRequest struct {
	Delta int    `json:"delta"`
	Type  string `json:"type"`
}

type Expense struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
}

type ExpenseCreateRequest struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Date        string `json:"date,omitempty"`
}

type Customer struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CustomerUpsertRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Employee struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	SalaryCents int64     `json:"salary_cents"`
	JoinDate    time.Time `json:"join_date"`
}

type EmployeeUpsertRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	SalaryCents int64  `json:"salary_cents"`
	JoinDate    string `json:"join_date,omitempty"`
}

type Supplier struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierUpsertRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
}

type Category struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
}

type ExpenseCategory struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type Settings struct {
	BusinessID      string  `json:"business_id"`
	BusinessName    string  `json:"business_name"`
	Address         string  `json:"address,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	CurrencyCode    string  `json:"currency_code"`
	TaxRatePercent  float64 `json:"tax_rate_percent"`
	ReceiptFooter   string  `json:"receipt_footer,omitempty"`
	LowStockAlerts  bool    `json:"low_stock_alerts"`
}

type Notification struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Read       bool      `json:"read"`
	Date       time.Time `json:"date"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BusinessID  string `json:"business_id"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username   string
	Role       string
	BusinessID string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username   string
	Password   string
	Role       string
	BusinessID string
	Name       string
	Active     bool
	CreatedAt  time.Time
}

type UserCreateRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
}

type StaffUser struct {
	Username   string    `json:"username"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role"`
	BusinessID string    `json:"business_id"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductPerformanceRow struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Category     string `json:"category"`
	QtySold      int    `json:"qty_sold"`
	RevenueCents int64  `json:"revenue_cents"`
	CostCents    int64  `json:"cost_cents"`
	ProfitCents  int64  `json:"profit_cents"`
	OpeningStock int    `json:"opening_stock"`
	ClosingStock int    `json:"closing_stock"`
}

type ProductPerformanceReport struct {
	BusinessID string                  `json:"business_id"`
	From       string                  `json:"from"`
	To         string                  `json:"to"`
	Rows       []ProductPerformanceRow `json:"rows"`
}

type GrossIncomeReport struct {
	BusinessID       string `json:"business_id"`
	From             string `json:"from"`
	To               string `json:"to"`
	RevenueCents     int64  `json:"revenue_cents"`
	GrossIncomeCents int64  `json:"gross_income_cents"`
	SaleCount        int    `json:"sale_count"`
}

type StockMovementRow struct {
	ProductID    string     `json:"product_id"`
	ProductName  string     `json:"product_name"`
	Sold         int        `json:"sold"`
	Restocked    int        `json:"restocked"`
	Adjusted     int        `json:"adjusted"`
	OpeningStock int        `json:"opening_stock"`
	ClosingStock int        `json:"closing_stock"`
	Entries      []StockLog `json:"entries"`
}

type StockMovementReport struct {
	BusinessID string             `json:"business_id"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	Rows       []StockMovementRow `json:"rows"`
}

type DashboardStats struct {
	BusinessID        string   `json:"business_id"`
	ProductCount      int      `json:"product_count"`
	CustomerCount     int      `json:"customer_count"`
	SaleCount         int      `json:"sale_count"`
	RevenueCents      int64    `json:"revenue_cents"`
	ExpensesCents     int64    `json:"expenses_cents"`
	GrossProfitCents  int64    `json:"gross_profit_cents"`
	NetProfitCents    int64    `json:"net_profit_cents"`
	LowStockProducts  []string `json:"low_stock_products"`
	GeneratedAt       string   `json:"generated_at"`
}

type ImportRow struct {
	Line           int    `json:"line"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Quantity       int    `json:"quantity"`
	BuyPriceCents  int64  `json:"buy_price_cents"`
	SellPriceCents int64  `json:"sell_price_cents"`
	Category       string `json:"category"`
	Supplier       string `json:"supplier,omitempty"`
}

type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportPreview struct {
	NewRows    []ImportRow      `json:"new_rows"`
	Duplicates []ImportRow      `json:"duplicates"`
	Errors     []ImportRowError `json:"errors,omitempty"`
}

type ImportResult struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SaleStatusPending   = "Pending"
	SaleStatusCompleted = "Completed"
)

const (
	PaymentMethodCash     = "Cash"
	PaymentMethodCard     = "Card"
	PaymentMethodTransfer = "Transfer"
)

const (
	StockLogTypeSale       = "sale"
	StockLogTypeRestock    = "restock"
	StockLogTypeAdjustment = "adjustment"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleSales   = "sales"
)

const NotificationTypeLowStock = "low_stock"
