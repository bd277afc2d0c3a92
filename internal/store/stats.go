package store

import (
	"fmt"
	"sort"
	"strings"
)

// OrderStatistics aggregates orders by status and customer.
// top_customers holds at most five {customer_name, orders} entries, busiest first.
func OrderStatistics(orders []map[string]any) map[string]any {
	if len(orders) == 0 {
		return map[string]any{
			"total_orders":     0,
			"by_status":        map[string]any{},
			"unique_customers": 0,
			"top_customers":    []any{},
		}
	}

	byStatus := map[string]any{}
	customerCounts := map[string]int{}
	var customerOrder []string
	for _, o := range orders {
		status := fieldOr(o, "status", unknownValue)
		n, _ := byStatus[status].(int)
		byStatus[status] = n + 1

		customer := fieldOr(o, "customer_name", unknownValue)
		if _, seen := customerCounts[customer]; !seen {
			customerOrder = append(customerOrder, customer)
		}
		customerCounts[customer]++
	}

	sort.SliceStable(customerOrder, func(i, j int) bool {
		return customerCounts[customerOrder[i]] > customerCounts[customerOrder[j]]
	})
	top := make([]any, 0, 5)
	for i, name := range customerOrder {
		if i == 5 {
			break
		}
		top = append(top, map[string]any{"customer_name": name, "orders": customerCounts[name]})
	}

	return map[string]any{
		"total_orders":     len(orders),
		"by_status":        byStatus,
		"unique_customers": len(customerCounts),
		"top_customers":    top,
	}
}

// ProductStatistics aggregates products by availability.
func ProductStatistics(products []map[string]any) map[string]any {
	byAvailability := map[string]any{}
	for _, p := range products {
		avail := fieldOr(p, "availability", unknownValue)
		n, _ := byAvailability[avail].(int)
		byAvailability[avail] = n + 1
	}
	inStock, _ := byAvailability[AvailabilityInStock].(int)
	outOfStock, _ := byAvailability[AvailabilityOutOfStock].(int)
	return map[string]any{
		"total_products":  len(products),
		"by_availability": byAvailability,
		"in_stock":        inStock,
		"out_of_stock":    outOfStock,
	}
}

// UniqueCustomers returns one {customer_name} record per distinct non-empty
// customer name, sorted by name.
func UniqueCustomers(orders []map[string]any) []map[string]any {
	seen := map[string]bool{}
	var names []string
	for _, o := range orders {
		name := fieldOr(o, "customer_name", "")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"customer_name": name})
	}
	return out
}

// BusinessSummary combines the order and product statistics with customer and policy counts.
func BusinessSummary(orderStats, productStats map[string]any, customers, policies int) map[string]any {
	return map[string]any{
		"orders":          orderStats,
		"products":        productStats,
		"total_customers": customers,
		"policies":        policies,
	}
}

// DedupeProducts removes duplicate products, keyed by the first present id
// column, and truncates to limit.
func DedupeProducts(products []map[string]any, limit int) []map[string]any {
	seen := map[string]bool{}
	out := make([]map[string]any, 0, limit)
	for _, p := range products {
		key := productKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

func productKey(p map[string]any) string {
	for _, col := range []string{"product_id", "id_producto", "codigo", "id", "product_name"} {
		if v, ok := p[col]; ok && v != nil && fmt.Sprint(v) != "" {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprint(p)
}

// matchesAny reports whether any of the name columns contains keyword, case-insensitively.
func matchesAny(p map[string]any, columns []string, keyword string) bool {
	kw := strings.ToLower(keyword)
	for _, col := range columns {
		v, ok := p[col]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), kw) {
			return true
		}
	}
	return false
}

func fieldOr(rec map[string]any, key, fallback string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fallback
	}
	return s
}
