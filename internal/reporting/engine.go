package reporting

import (
	"slices"
	"time"

	"elifysis/backend/internal/domain"
)

// LowStockThreshold is the quantity below which a product is flagged for
// restocking on the dashboard and in notifications.
const LowStockThreshold = 10

// DeriveStockAt reconstructs a product's quantity at time t by walking the
// stock ledger backwards from the current quantity: entries dated after t
// have not happened yet at t, so their changes are subtracted.
func DeriveStockAt(currentQty int, logs []domain.StockLog, productID string, t time.Time) int {
	qty := currentQty
	for _, entry := range logs {
		if entry.ProductID != productID {
			continue
		}
		if entry.Date.After(t) {
			qty -= entry.Change
		}
	}
	return qty
}

// ProductPerformance aggregates completed sales in [from, to) per product.
// Cost and profit are computed against the product's current buy price.
// Products without sales in the period are omitted; rows are ordered by
// profit, highest first.
func ProductPerformance(products []domain.Product, sales []domain.Sale, logs []domain.StockLog, from time.Time, to time.Time) []domain.ProductPerformanceRow {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	type agg struct {
		qty     int
		revenue int64
	}
	sold := make(map[string]agg)
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted || !inRange(sale.Date, from, to) {
			continue
		}
		for _, item := range sale.Items {
			entry := sold[item.ProductID]
			entry.qty += item.Quantity
			entry.revenue += item.TotalCents
			sold[item.ProductID] = entry
		}
	}

	rows := make([]domain.ProductPerformanceRow, 0, len(sold))
	for productID, entry := range sold {
		if entry.qty == 0 {
			continue
		}
		product, exists := byID[productID]
		if !exists {
			continue
		}
		cost := int64(entry.qty) * product.BuyPriceCents
		rows = append(rows, domain.ProductPerformanceRow{
			ProductID:    productID,
			ProductName:  product.Name,
			Category:     product.Category,
			QtySold:      entry.qty,
			RevenueCents: entry.revenue,
			CostCents:    cost,
			ProfitCents:  entry.revenue - cost,
			OpeningStock: DeriveStockAt(product.Quantity, logs, productID, from),
			ClosingStock: DeriveStockAt(product.Quantity, logs, productID, to),
		})
	}

	slices.SortFunc(rows, func(a, b domain.ProductPerformanceRow) int {
		if a.ProfitCents == b.ProfitCents {
			return cmpString(a.ProductName, b.ProductName)
		}
		if a.ProfitCents > b.ProfitCents {
			return -1
		}
		return 1
	})

	return rows
}

// GrossIncome sums the per-item margin (unit sell price at sale time minus
// the product's current buy price) over completed sales in [from, to).
// Items whose product has been deleted from the catalog contribute no
// margin; there is no cost basis left to compute one against.
func GrossIncome(products []domain.Product, sales []domain.Sale, from time.Time, to time.Time) (revenueCents int64, grossCents int64, saleCount int) {
	buyPrice := make(map[string]int64, len(products))
	for _, p := range products {
		buyPrice[p.ID] = p.BuyPriceCents
	}

	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted || !inRange(sale.Date, from, to) {
			continue
		}
		saleCount++
		revenueCents += sale.TotalCents
		for _, item := range sale.Items {
			buy, exists := buyPrice[item.ProductID]
			if !exists {
				continue
			}
			grossCents += (item.UnitPriceCents - buy) * int64(item.Quantity)
		}
	}
	return revenueCents, grossCents, saleCount
}

// StockMovement groups ledger entries in [from, to) per product. When
// productID is non-empty only that product is reported.
func StockMovement(products []domain.Product, logs []domain.StockLog, from time.Time, to time.Time, productID string) []domain.StockMovementRow {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	grouped := make(map[string][]domain.StockLog)
	for _, entry := range logs {
		if productID != "" && entry.ProductID != productID {
			continue
		}
		if !inRange(entry.Date, from, to) {
			continue
		}
		grouped[entry.ProductID] = append(grouped[entry.ProductID], entry)
	}

	rows := make([]domain.StockMovementRow, 0, len(grouped))
	for id, entries := range grouped {
		slices.SortFunc(entries, func(a, b domain.StockLog) int {
			if a.Date.Equal(b.Date) {
				return cmpString(a.ID, b.ID)
			}
			if a.Date.Before(b.Date) {
				return -1
			}
			return 1
		})

		row := domain.StockMovementRow{ProductID: id, Entries: entries}
		for _, entry := range entries {
			row.ProductName = entry.ProductName
			switch entry.Type {
			case domain.StockLogTypeSale:
				if entry.Change < 0 {
					row.Sold += -entry.Change
				} else {
					row.Sold += entry.Change
				}
			case domain.StockLogTypeRestock:
				row.Restocked += entry.Change
			case domain.StockLogTypeAdjustment:
				row.Adjusted += entry.Change
			}
		}
		if product, exists := byID[id]; exists {
			row.ProductName = product.Name
			row.OpeningStock = DeriveStockAt(product.Quantity, logs, id, from)
			row.ClosingStock = DeriveStockAt(product.Quantity, logs, id, to)
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b domain.StockMovementRow) int {
		return cmpString(a.ProductName, b.ProductName)
	})

	return rows
}

// LowStock returns the products whose quantity has fallen under the
// threshold, lowest quantity first.
func LowStock(products []domain.Product) []domain.Product {
	low := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.Quantity < LowStockThreshold {
			low = append(low, p)
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		if a.Quantity == b.Quantity {
			return cmpString(a.Name, b.Name)
		}
		return a.Quantity - b.Quantity
	})
	return low
}

// Dashboard condenses the back-office overview numbers from the raw records.
func Dashboard(businessID string, products []domain.Product, customerCount int, sales []domain.Sale, expenses []domain.Expense, now time.Time) domain.DashboardStats {
	stats := domain.DashboardStats{
		BusinessID:    businessID,
		ProductCount:  len(products),
		CustomerCount: customerCount,
		GeneratedAt:   now.UTC().Format(time.RFC3339),
	}

	buyPrice := make(map[string]int64, len(products))
	for _, p := range products {
		buyPrice[p.ID] = p.BuyPriceCents
	}

	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		stats.SaleCount++
		stats.RevenueCents += sale.TotalCents
		for _, item := range sale.Items {
			buy, exists := buyPrice[item.ProductID]
			if !exists {
				continue
			}
			stats.GrossProfitCents += (item.UnitPriceCents - buy) * int64(item.Quantity)
		}
	}
	for _, expense := range expenses {
		stats.ExpensesCents += expense.AmountCents
	}
	stats.NetProfitCents = stats.GrossProfitCents - stats.ExpensesCents

	for _, p := range LowStock(products) {
		stats.LowStockProducts = append(stats.LowStockProducts, p.Name)
	}

	return stats
}

func inRange(t time.Time, from time.Time, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
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
