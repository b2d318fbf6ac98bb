package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"elifysis/backend/internal/domain"
	"elifysis/backend/internal/store"
)

func pendingSale(id string, businessID string, ticket string) domain.Sale {
	return domain.Sale{
		ID:           id,
		BusinessID:   businessID,
		TicketID:     ticket,
		CustomerName: "Walk-in Customer",
		Items: []domain.SaleItem{
			{ProductID: "p1", ProductName: "Item", Quantity: 1, UnitPriceCents: 100, TotalCents: 100},
		},
		TotalCents: 100,
		Date:       time.Now().UTC(),
		Status:     domain.SaleStatusPending,
	}
}

func TestMarkSaleCompletedIsSingleShot(t *testing.T) {
	s := New()
	ctx := context.Background()

	opened := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sale := pendingSale("sale-1", "biz", "CUST-00001")
	sale.Date = opened
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	completed, err := s.MarkSaleCompleted(ctx, "biz", "sale-1", domain.PaymentMethodCash)
	if err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if completed.Status != domain.SaleStatusCompleted || completed.PaymentMethod != domain.PaymentMethodCash {
		t.Fatalf("unexpected completed sale: %+v", completed)
	}
	if !completed.Date.Equal(opened) {
		t.Fatalf("completion must not touch the creation date: got %v, want %v", completed.Date, opened)
	}

	if _, err := s.MarkSaleCompleted(ctx, "biz", "sale-1", domain.PaymentMethodCard); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second completion, got %v", err)
	}
	if _, err := s.MarkSaleCompleted(ctx, "biz", "missing", domain.PaymentMethodCash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown sale, got %v", err)
	}
}

func TestCreateSaleRejectsDuplicateTicket(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateSale(ctx, pendingSale("sale-1", "biz", "CUST-00042")); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := s.CreateSale(ctx, pendingSale("sale-2", "biz", "CUST-00042")); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for duplicate ticket, got %v", err)
	}
	// The same ticket number under another business is fine.
	if _, err := s.CreateSale(ctx, pendingSale("sale-3", "other-biz", "CUST-00042")); err != nil {
		t.Fatalf("create sale in other business failed: %v", err)
	}
}

func TestBusinessScopingIsolatesTenants(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, p := range []domain.Product{
		{ID: "p1", BusinessID: "biz-a", Name: "Alpha", Quantity: 1, SellPriceCents: 100},
		{ID: "p2", BusinessID: "biz-b", Name: "Beta", Quantity: 1, SellPriceCents: 100},
	} {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}

	listA, err := s.ListProducts(ctx, "biz-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listA) != 1 || listA[0].ID != "p1" {
		t.Fatalf("expected only biz-a products, got %+v", listA)
	}

	if _, err := s.GetProduct(ctx, "biz-a", "p2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cross-tenant get to miss, got %v", err)
	}
	if err := s.DeleteProduct(ctx, "biz-a", "p2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cross-tenant delete to miss, got %v", err)
	}
}

func TestClonedReturnsDoNotAliasStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateProduct(ctx, domain.Product{ID: "p1", BusinessID: "biz", Name: "Alpha", Quantity: 5, SellPriceCents: 100}); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	got, err := s.GetProduct(ctx, "biz", "p1")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	got.Quantity = 999

	again, err := s.GetProduct(ctx, "biz", "p1")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if again.Quantity != 5 {
		t.Fatalf("expected stored quantity unchanged, got %d", again.Quantity)
	}
}

func TestSeededStoreHasWorkingLogins(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	roles := make(map[string]bool, len(users))
	for _, u := range users {
		roles[u.Role] = true
		if u.BusinessID != "demo-business" {
			t.Fatalf("expected demo business scope for %s, got %s", u.Username, u.BusinessID)
		}
	}
	for _, want := range []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier, domain.RoleSales} {
		if !roles[want] {
			t.Fatalf("expected seeded user with role %s", want)
		}
	}

	products, err := s.ListProducts(ctx, "demo-business")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	logs, err := s.ListStockLogs(ctx, "demo-business", "")
	if err != nil {
		t.Fatalf("list stock logs failed: %v", err)
	}
	if len(logs) != len(products) {
		t.Fatalf("expected one opening ledger entry per product, got %d/%d", len(logs), len(products))
	}
}
