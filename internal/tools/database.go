package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/waver/internal/store"
)

// DataSource is the read side of the store used by the database tool.
type DataSource interface {
	GetOrderByID(ctx context.Context, orderID string) (map[string]any, error)
	SearchProducts(ctx context.Context, keywords []string) ([]map[string]any, error)
	GetAllCustomers(ctx context.Context) ([]map[string]any, error)
	GetAllOrders(ctx context.Context) ([]map[string]any, error)
	GetOrderStatistics(ctx context.Context) (map[string]any, error)
	GetAllProductsDetailed(ctx context.Context) ([]map[string]any, error)
	GetProductStatistics(ctx context.Context) (map[string]any, error)
	GetBusinessSummary(ctx context.Context) (map[string]any, error)
	GetAllCompanyInfo(ctx context.Context) ([]map[string]any, error)
}

// DatabaseQueryType selects the read operation of the database tool.
type DatabaseQueryType string

const (
	QueryOrderLookup       DatabaseQueryType = "order_lookup"
	QueryProductSearch     DatabaseQueryType = "product_search"
	QueryCustomerAnalytics DatabaseQueryType = "customer_analytics"
	QueryOrderAnalytics    DatabaseQueryType = "order_analytics"
	QueryProductAnalytics  DatabaseQueryType = "product_analytics"
	QueryBusinessSummary   DatabaseQueryType = "business_summary"
	QueryCompanyPolicies   DatabaseQueryType = "company_policies"
)

// DatabaseQueryTypes lists every supported query type.
var DatabaseQueryTypes = []DatabaseQueryType{
	QueryOrderLookup, QueryProductSearch, QueryCustomerAnalytics, QueryOrderAnalytics,
	QueryProductAnalytics, QueryBusinessSummary, QueryCompanyPolicies,
}

// DatabaseQueryTool answers order, product, customer and policy queries.
type DatabaseQueryTool struct {
	db DataSource
}

// NewDatabaseQueryTool creates the database tool over db.
func NewDatabaseQueryTool(db DataSource) *DatabaseQueryTool {
	return &DatabaseQueryTool{db: db}
}

func (t *DatabaseQueryTool) Name() string { return "database_query" }

func (t *DatabaseQueryTool) Description() string {
	return "Query database for orders, products, customers, and analytics data"
}

func (t *DatabaseQueryTool) Schema() Schema {
	enum := make([]any, len(DatabaseQueryTypes))
	for i, q := range DatabaseQueryTypes {
		enum[i] = string(q)
	}
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"query_type": map[string]any{
				"type":        "string",
				"enum":        enum,
				"description": "Type of database query to perform",
			},
			"params": map[string]any{
				"type":        "object",
				"description": "Parameters specific to the query type",
				"properties": map[string]any{
					"order_id":    map[string]any{"type": "string"},
					"keywords":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"customer_id": map[string]any{"type": "string"},
				},
			},
		},
		"required": []any{"query_type"},
	}
}

func (t *DatabaseQueryTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	queryType := stringParam(params, "query_type")
	if queryType == "" {
		return nil, errors.New("query_type parameter is required")
	}
	out, err := t.dispatch(ctx, DatabaseQueryType(queryType), mapParam(params, "params"))
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return out, nil
}

func (t *DatabaseQueryTool) dispatch(ctx context.Context, q DatabaseQueryType, p map[string]any) (map[string]any, error) {
	switch q {
	case QueryOrderLookup:
		orderID := stringParam(p, "order_id")
		if orderID == "" {
			return nil, errors.New("order_id is required for order lookup")
		}
		order, err := t.db.GetOrderByID(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"data": nil, "type": "order_detail"}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": order, "type": "order_detail"}, nil

	case QueryProductSearch:
		keywords := stringList(p["keywords"])
		if len(keywords) == 0 {
			return nil, errors.New("keywords are required for product search")
		}
		products, err := t.db.SearchProducts(ctx, keywords)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": records(products), "type": "product_list"}, nil

	case QueryCustomerAnalytics:
		customers, err := t.db.GetAllCustomers(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := t.db.GetOrderStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return analytics("customers", records(customers), stats), nil

	case QueryOrderAnalytics:
		orders, err := t.db.GetAllOrders(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := t.db.GetOrderStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return analytics("orders", records(orders), stats), nil

	case QueryProductAnalytics:
		products, err := t.db.GetAllProductsDetailed(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := t.db.GetProductStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return analytics("products", records(products), stats), nil

	case QueryBusinessSummary:
		summary, err := t.db.GetBusinessSummary(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": summary, "type": "summary"}, nil

	case QueryCompanyPolicies:
		info, err := t.db.GetAllCompanyInfo(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": records(info), "type": "policies"}, nil

	default:
		return nil, fmt.Errorf("Unknown query type: %s", q)
	}
}

func analytics(key string, items []any, stats map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{key: items, "statistics": stats},
		"type": "analytics",
	}
}

func records(rs []map[string]any) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}
