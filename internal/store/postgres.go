package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

// PostgresConfig configures the connection to the hosted Postgres database.
type PostgresConfig struct {
	URL                string
	PingTimeout        time.Duration
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ProductNameColumns []string
}

// Validate checks the configuration for obvious mistakes.
func (c PostgresConfig) Validate() error {
	if c.URL == "" {
		return errors.New("database url is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("database ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("database max open conns must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("database max idle conns must be between 0 and max open conns")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("database conn max lifetime must be >= 0")
	}
	return nil
}

// Postgres is a Store backed by the Supabase Postgres tables.
type Postgres struct {
	db          *sql.DB
	logger      *slog.Logger
	nameColumns []string
	searchSQL   string
}

// OpenPostgres connects to the database and verifies the connection with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return newPostgres(db, cfg.ProductNameColumns, logger), nil
}

func newPostgres(db *sql.DB, nameColumns []string, logger *slog.Logger) *Postgres {
	if len(nameColumns) == 0 {
		nameColumns = DefaultProductNameColumns
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{
		db:          db,
		logger:      logger,
		nameColumns: nameColumns,
		searchSQL:   productSearchSQL(nameColumns),
	}
}

// productSearchSQL builds the ILIKE search over all name columns. $1 is the pattern.
func productSearchSQL(columns []string) string {
	conds := make([]string, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, pgx.Identifier{col}.Sanitize()+" ILIKE $1")
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 10",
		pgx.Identifier{TableProducts}.Sanitize(), strings.Join(conds, " OR "))
}

func selectAll(table string) string {
	return "SELECT * FROM " + pgx.Identifier{table}.Sanitize()
}

func (p *Postgres) GetOrderByID(ctx context.Context, orderID string) (map[string]any, error) {
	q := selectAll(TableOrders) + " WHERE order_id = $1 LIMIT 1"
	recs, err := p.queryRecords(ctx, q, strings.ToUpper(orderID))
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (p *Postgres) SearchProducts(ctx context.Context, keywords []string) ([]map[string]any, error) {
	if len(keywords) == 0 {
		return []map[string]any{}, nil
	}
	var matches []map[string]any
	for _, kw := range keywords {
		like := "%" + kw + "%"
		recs, err := p.queryRecords(ctx, p.searchSQL, like)
		if isUndefinedColumn(err) {
			recs, err = p.searchByColumn(ctx, like)
		}
		if err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
		matches = append(matches, recs...)
	}
	return DedupeProducts(matches, 5), nil
}

// searchByColumn queries each name column on its own, skipping columns the table lacks.
func (p *Postgres) searchByColumn(ctx context.Context, like string) ([]map[string]any, error) {
	var out []map[string]any
	for _, col := range p.nameColumns {
		q := selectAll(TableProducts) + " WHERE " + pgx.Identifier{col}.Sanitize() + " ILIKE $1 LIMIT 10"
		recs, err := p.queryRecords(ctx, q, like)
		if isUndefinedColumn(err) {
			p.logger.Debug("product name column missing", "column", col)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (p *Postgres) GetAllCustomers(ctx context.Context) ([]map[string]any, error) {
	recs, err := p.queryRecords(ctx, "SELECT customer_name FROM "+pgx.Identifier{TableOrders}.Sanitize())
	if err != nil {
		return nil, fmt.Errorf("get customers: %w", err)
	}
	return UniqueCustomers(recs), nil
}

func (p *Postgres) GetAllOrders(ctx context.Context) ([]map[string]any, error) {
	recs, err := p.queryRecords(ctx, selectAll(TableOrders))
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return recs, nil
}

func (p *Postgres) GetOrderStatistics(ctx context.Context) (map[string]any, error) {
	orders, err := p.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return OrderStatistics(orders), nil
}

func (p *Postgres) GetAllProductsDetailed(ctx context.Context) ([]map[string]any, error) {
	recs, err := p.queryRecords(ctx, selectAll(TableProducts))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return recs, nil
}

func (p *Postgres) GetProductStatistics(ctx context.Context) (map[string]any, error) {
	products, err := p.GetAllProductsDetailed(ctx)
	if err != nil {
		return nil, err
	}
	return ProductStatistics(products), nil
}

// GetBusinessSummary loads orders, products and company info concurrently.
func (p *Postgres) GetBusinessSummary(ctx context.Context) (map[string]any, error) {
	var orders, products, info []map[string]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = p.GetAllOrders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = p.GetAllProductsDetailed(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = p.GetAllCompanyInfo(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("business summary: %w", err)
	}
	return BusinessSummary(
		OrderStatistics(orders),
		ProductStatistics(products),
		len(UniqueCustomers(orders)),
		len(info),
	), nil
}

func (p *Postgres) GetAllCompanyInfo(ctx context.Context) ([]map[string]any, error) {
	recs, err := p.queryRecords(ctx, selectAll(TableCompanyInfo))
	if err != nil {
		return nil, fmt.Errorf("get company info: %w", err)
	}
	return recs, nil
}

func (p *Postgres) SaveConversation(ctx context.Context, c Conversation) (Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	q := "INSERT INTO " + pgx.Identifier{TableConversations}.Sanitize() +
		" (id, mensaje_usuario, respuesta_bot, intencion, marca_tiempo) VALUES ($1, $2, $3, $4, $5)"
	if _, err := p.db.ExecContext(ctx, q, c.ID, c.UserMessage, c.BotResponse, c.Intent, c.Timestamp); err != nil {
		return c, fmt.Errorf("save conversation: %w", err)
	}
	return c, nil
}

func (p *Postgres) RecentConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 10
	}
	q := "SELECT id, mensaje_usuario, respuesta_bot, COALESCE(intencion, ''), marca_tiempo FROM " +
		pgx.Identifier{TableConversations}.Sanitize() + " ORDER BY marca_tiempo DESC LIMIT $1"
	rows, err := p.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserMessage, &c.BotResponse, &c.Intent, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// queryRecords runs q and returns every row as a column-name keyed map.
func (p *Postgres) queryRecords(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42703"
	}
	return false
}
