// Package report computes analytics as pure folds over loaded orders.
// Nothing here touches the database.
package report

import (
	"sort"
	"strconv"
	"time"

	"pos/internal/billing"
	"pos/internal/models"
)

type Scope string

const (
	ScopeDay   Scope = "day"
	ScopeMonth Scope = "month"
)

// DailyMetrics is the admin dashboard snapshot. It counts every order
// created today regardless of status, so revenue here includes orders
// still open.
type DailyMetrics struct {
	Date           string         `json:"date"`
	OrderCount     int            `json:"order_count"`
	Revenue        float64        `json:"revenue"`
	AverageOrder   float64        `json:"average_order"`
	StatusCounts   map[string]int `json:"status_counts"`
	CompletionRate float64        `json:"completion_rate"`
}

type RankedRevenue struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// Summary covers paid orders only within the scope's calendar window.
type Summary struct {
	Scope        Scope           `json:"scope"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	OrderCount   int             `json:"order_count"`
	Revenue      float64         `json:"revenue"`
	AverageOrder float64         `json:"average_order"`
	ByWaiter     []RankedRevenue `json:"by_waiter"`
	ByTable      []RankedRevenue `json:"by_table"`
}

func Daily(orders []models.Order, asOf time.Time) DailyMetrics {
	metrics := DailyMetrics{
		Date:         asOf.Format("2006-01-02"),
		StatusCounts: map[string]int{},
	}
	year, month, day := asOf.Date()
	var revenue float64
	var paid int
	for _, order := range orders {
		oy, om, od := order.CreatedAt.In(asOf.Location()).Date()
		if oy != year || om != month || od != day {
			continue
		}
		metrics.OrderCount++
		metrics.StatusCounts[order.Status]++
		revenue += order.Total
		if order.Status == models.OrderPaid {
			paid++
		}
	}
	metrics.Revenue = billing.Round2(revenue)
	if metrics.OrderCount > 0 {
		metrics.AverageOrder = billing.Round2(revenue / float64(metrics.OrderCount))
		metrics.CompletionRate = billing.Round2(float64(paid) / float64(metrics.OrderCount) * 100)
	}
	return metrics
}

func Summarize(orders []models.Order, scope Scope, asOf time.Time) Summary {
	from, to := window(scope, asOf)
	summary := Summary{Scope: scope, From: from, To: to}

	waiterIdx := map[string]int{}
	tableIdx := map[string]int{}
	var revenue float64
	for _, order := range orders {
		if order.Status != models.OrderPaid {
			continue
		}
		created := order.CreatedAt.In(asOf.Location())
		if created.Before(from) || !created.Before(to) {
			continue
		}
		summary.OrderCount++
		revenue += order.Total

		accumulate(&summary.ByWaiter, waiterIdx, order.WaiterName, order.Total)
		accumulate(&summary.ByTable, tableIdx, tableKey(order.TableNumber), order.Total)
	}
	summary.Revenue = billing.Round2(revenue)
	if summary.OrderCount > 0 {
		summary.AverageOrder = billing.Round2(revenue / float64(summary.OrderCount))
	}

	rank(summary.ByWaiter)
	rank(summary.ByTable)
	return summary
}

func accumulate(ranked *[]RankedRevenue, index map[string]int, key string, amount float64) {
	i, ok := index[key]
	if !ok {
		i = len(*ranked)
		index[key] = i
		*ranked = append(*ranked, RankedRevenue{Key: key})
	}
	(*ranked)[i].Revenue += amount
	(*ranked)[i].Orders++
}

func rank(ranked []RankedRevenue) {
	for i := range ranked {
		ranked[i].Revenue = billing.Round2(ranked[i].Revenue)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Revenue > ranked[j].Revenue
	})
}

func window(scope Scope, asOf time.Time) (time.Time, time.Time) {
	year, month, day := asOf.Date()
	loc := asOf.Location()
	if scope == ScopeMonth {
		from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	}
	from := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

func tableKey(number int) string {
	return "table-" + strconv.Itoa(number)
}
