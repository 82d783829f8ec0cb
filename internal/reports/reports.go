// Package reports aggregates paid orders into sales summaries.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"
	"kioskpos/internal/turn"
)

type ProductLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   int64   `json:"revenue"`
	Share     float64 `json:"share_percent"`
}

type Summary struct {
	From          string        `json:"from,omitempty"`
	To            string        `json:"to,omitempty"`
	OrderCount    int           `json:"order_count"`
	TotalSales    int64         `json:"total_sales"`
	TotalItems    int           `json:"total_items"`
	AverageTicket int64         `json:"average_ticket"`
	Products      []ProductLine `json:"products"`
}

type Statistics struct {
	Today      Summary `json:"today"`
	Last7Days  Summary `json:"last_7_days"`
	Last30Days Summary `json:"last_30_days"`
}

// Summarize totals the orders that count as sales and ranks products by
// quantity sold, then by name.
func Summarize(orders []models.Order) Summary {
	summary := Summary{Products: []ProductLine{}}
	byProduct := make(map[string]*ProductLine)
	for _, order := range orders {
		if !models.IsSale(order.Status) {
			continue
		}
		summary.OrderCount++
		summary.TotalSales += order.Total
		for _, item := range order.Items {
			key := item.ProductID
			if key == "" {
				key = item.Name
			}
			line, ok := byProduct[key]
			if !ok {
				line = &ProductLine{ProductID: item.ProductID, Name: item.Name}
				byProduct[key] = line
			}
			line.Quantity += item.Quantity
			line.Revenue += item.Subtotal
			summary.TotalItems += item.Quantity
		}
	}

	for _, line := range byProduct {
		if summary.TotalSales > 0 {
			line.Share = float64(line.Revenue) * 100 / float64(summary.TotalSales)
		}
		summary.Products = append(summary.Products, *line)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		a, b := summary.Products[i], summary.Products[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if summary.OrderCount > 0 {
		summary.AverageTicket = summary.TotalSales / int64(summary.OrderCount)
	}
	return summary
}

// Top returns at most limit entries of the ranking.
func Top(summary Summary, limit int) []ProductLine {
	if limit <= 0 || limit >= len(summary.Products) {
		return summary.Products
	}
	return summary.Products[:limit]
}

type OrderLister interface {
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
}

type Service struct {
	orders OrderLister
	clock  turn.Clock
}

func NewService(orders OrderLister, clock turn.Clock) *Service {
	return &Service{orders: orders, clock: clock}
}

func (s *Service) Today(ctx context.Context) (Summary, error) {
	today := s.clock.Today()
	return s.Range(ctx, today, today)
}

// Range summarizes sales between two business dates, both inclusive.
func (s *Service) Range(ctx context.Context, from, to string) (Summary, error) {
	orders, err := s.Orders(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	summary := Summarize(orders)
	summary.From = from
	summary.To = to
	return summary, nil
}

// Orders lists the paid orders between two business dates.
func (s *Service) Orders(ctx context.Context, from, to string) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx, store.OrderFilter{DateFrom: from, DateTo: to, Statuses: store.SaleStatuses})
	if err != nil {
		return nil, fmt.Errorf("list orders %s..%s: %w", from, to, err)
	}
	return orders, nil
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	today := s.clock.Today()
	month, err := s.Orders(ctx, s.clock.DaysAgo(29), today)
	if err != nil {
		return Statistics{}, err
	}

	weekStart := s.clock.DaysAgo(6)
	var todays, week []models.Order
	for _, order := range month {
		if order.BusinessDate >= weekStart {
			week = append(week, order)
		}
		if order.BusinessDate == today {
			todays = append(todays, order)
		}
	}

	stats := Statistics{
		Today:      Summarize(todays),
		Last7Days:  Summarize(week),
		Last30Days: Summarize(month),
	}
	stats.Today.From, stats.Today.To = today, today
	stats.Last7Days.From, stats.Last7Days.To = weekStart, today
	stats.Last30Days.From, stats.Last30Days.To = s.clock.DaysAgo(29), today
	return stats, nil
}

var csvHeader = []string{
	"order_id", "turn_number", "business_date", "status", "created_at",
	"product_id", "product_name", "quantity", "unit_price", "subtotal", "order_total",
}

// WriteCSV writes one row per order line.
func WriteCSV(w io.Writer, orders []models.Order) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, order := range orders {
		for _, item := range order.Items {
			record := []string{
				order.OrderID,
				order.TurnNumber,
				order.BusinessDate,
				order.Status,
				order.CreatedAt.Format(time.RFC3339),
				item.ProductID,
				item.Name,
				strconv.Itoa(item.Quantity),
				strconv.FormatInt(item.UnitPrice, 10),
				strconv.FormatInt(item.Subtotal, 10),
				strconv.FormatInt(order.Total, 10),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
