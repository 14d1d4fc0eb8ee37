// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/basketgraph/internal/metrics"
	"github.com/tomtom215/basketgraph/internal/recommend"
)

// Input table names used in logs and metrics.
const (
	TableCustomers = "customers"
	TableProducts  = "products"
	TableInvoices  = "invoices"
	TableFeedback  = "feedback"
)

// Config locates the pipeline inputs.
type Config struct {
	// DuckDBPath is the database file. Empty opens an in-memory database,
	// which is enough for CSV inputs.
	DuckDBPath string `koanf:"duckdb_path"`

	// FromTables reads the inputs below as table names in DuckDBPath instead
	// of CSV file paths.
	FromTables bool `koanf:"from_tables"`

	Customers string `koanf:"customers" validate:"required"`
	Products  string `koanf:"products" validate:"required"`
	Invoices  string `koanf:"invoices" validate:"required"`

	// Feedback is optional; empty means no feedback source.
	Feedback string `koanf:"feedback"`

	// Threads caps DuckDB worker threads. 0 uses runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`

	// MaxMemory is the DuckDB memory limit, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// QueryTimeout bounds each load query. 0 disables the timeout.
	QueryTimeout time.Duration `koanf:"query_timeout"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// Loader reads recommend.Inputs through DuckDB.
type Loader struct {
	conn    *sql.DB
	cfg     Config
	breaker *gobreaker.CircuitBreaker[recommend.FeedbackSource]
	logger  zerolog.Logger
}

// Open opens the DuckDB connection used by every load.
//
//nolint:gocritic // hugeParam: zerolog.Logger is passed by value per zerolog convention
func Open(cfg Config, logger zerolog.Logger) (*Loader, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	path := cfg.DuckDBPath
	mode := "read_only"
	if path == "" {
		path = ":memory:"
		mode = "automatic"
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: duckdb file %s: %v", recommend.ErrSchema, path, err)
	}

	connStr := fmt.Sprintf("%s?access_mode=%s&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, mode, threads)
	if cfg.MaxMemory != "" {
		connStr += "&max_memory=" + cfg.MaxMemory
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	l := &Loader{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("component", "loader").Logger(),
	}
	l.breaker = newFeedbackBreaker(cfg.Breaker, l.logger)
	return l, nil
}

// Close releases the DuckDB connection.
func (l *Loader) Close() error {
	return l.conn.Close()
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close() //nolint:errcheck // best-effort cleanup in error paths
	}
}

// Load reads customers, products and invoices concurrently, then feedback.
// The first required-table failure cancels the other reads.
func (l *Loader) Load(ctx context.Context) (*recommend.Inputs, error) {
	var (
		customers []recommend.Customer
		products  []recommend.Product
		invoices  []recommend.InvoiceLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		customers, err = l.LoadCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = l.LoadProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = l.LoadInvoices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := &recommend.Inputs{
		Customers: customers,
		Products:  products,
		Invoices:  invoices,
		Feedback:  l.LoadFeedback(ctx),
	}
	l.logger.Info().
		Int("customers", len(customers)).
		Int("products", len(products)).
		Int("invoices", len(invoices)).
		Int("feedback", len(in.Feedback.Records)).
		Bool("feedback_available", !in.Feedback.Unavailable).
		Msg("Inputs loaded")
	return in, nil
}

// relation returns the FROM expression for source.
func (l *Loader) relation(source string) string {
	if l.cfg.FromTables {
		return quoteIdent(source)
	}
	return fmt.Sprintf("read_csv_auto(%s, header=true, all_varchar=true)", quoteLiteral(filepath.Clean(source)))
}

func (l *Loader) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, l.cfg.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// describe returns the column names of source.
func (l *Loader) describe(ctx context.Context, table, source string) ([]string, error) {
	if !l.cfg.FromTables {
		if _, err := os.Stat(source); err != nil {
			return nil, fmt.Errorf("%w: %s input %s: %v", recommend.ErrSchema, table, source, err)
		}
	}

	qctx, cancel := l.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := l.conn.QueryContext(qctx, "DESCRIBE SELECT * FROM "+l.relation(source))
	if err != nil {
		metrics.RecordDBQuery("describe", table, time.Since(start), err)
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer closeQuietly(rows)

	width, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}

	var names []string
	for rows.Next() {
		vals := make([]sql.NullString, len(width))
		ptrs := make([]interface{}, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s schema: %w", table, err)
		}
		names = append(names, vals[0].String)
	}
	err = rows.Err()
	metrics.RecordDBQuery("describe", table, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	return names, nil
}

// selectQuery builds a query returning one VARCHAR per wanted column.
// Absent optional columns select NULL. The returned slice names the source
// column used for each output position, empty when absent.
func (l *Loader) selectQuery(table, source string, available []string, wanted []column) (string, []string, error) {
	index := columnIndex(available)
	exprs := make([]string, 0, len(wanted))
	used := make([]string, 0, len(wanted))
	var missing []string
	groups := make(map[string][]string)
	var groupOrder []string
	satisfied := make(map[string]bool)

	for _, c := range wanted {
		name, ok := c.resolve(index)
		if c.AnyOf != "" {
			if _, seen := groups[c.AnyOf]; !seen {
				groupOrder = append(groupOrder, c.AnyOf)
			}
			groups[c.AnyOf] = append(groups[c.AnyOf], c.Names[0])
			satisfied[c.AnyOf] = satisfied[c.AnyOf] || ok
		}
		if !ok {
			if c.Required {
				missing = append(missing, c.Names[0])
			}
			exprs = append(exprs, "CAST(NULL AS VARCHAR)")
			used = append(used, "")
			continue
		}
		exprs = append(exprs, "CAST("+quoteIdent(name)+" AS VARCHAR)")
		used = append(used, name)
	}
	for _, g := range groupOrder {
		if !satisfied[g] {
			missing = append(missing, "one of ("+strings.Join(groups[g], ", ")+")")
		}
	}
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("%w: %s is missing required columns %s",
			recommend.ErrSchema, table, strings.Join(missing, ", "))
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + l.relation(source), used, nil
}

// scanAll runs the load for table, calling fn once per row with the
// VARCHAR values in wanted order.
func (l *Loader) scanAll(ctx context.Context, table, source string, wanted []column, fn func(vals []string)) ([]string, error) {
	available, err := l.describe(ctx, table, source)
	if err != nil {
		return nil, err
	}
	query, used, err := l.selectQuery(table, source, available, wanted)
	if err != nil {
		return nil, err
	}

	qctx, cancel := l.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := l.conn.QueryContext(qctx, query)
	if err != nil {
		metrics.RecordDBQuery("load", table, time.Since(start), err)
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer closeQuietly(rows)

	raw := make([]sql.NullString, len(wanted))
	ptrs := make([]interface{}, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	vals := make([]string, len(wanted))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for i := range raw {
			vals[i] = strings.TrimSpace(raw[i].String)
		}
		fn(vals)
	}
	err = rows.Err()
	metrics.RecordDBQuery("load", table, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return used, nil
}

// LoadCustomers reads the customer master.
func (l *Loader) LoadCustomers(ctx context.Context) ([]recommend.Customer, error) {
	var out []recommend.Customer
	_, err := l.scanAll(ctx, TableCustomers, l.cfg.Customers, customerColumns, func(v []string) {
		out = append(out, recommend.Customer{ID: v[0], Region: v[1], Trade: v[2]})
	})
	return out, err
}

// LoadProducts reads the product catalog. Rows without a parseable price
// have no price; a missing in_stock value counts as out of stock.
func (l *Loader) LoadProducts(ctx context.Context) ([]recommend.Product, error) {
	var out []recommend.Product
	used, err := l.scanAll(ctx, TableProducts, l.cfg.Products, productColumns, func(v []string) {
		p := recommend.Product{
			ID:         v[0],
			Name:       v[1],
			Brand:      v[2],
			L2:         v[3],
			L3:         v[4],
			Functional: v[5],
			InStock:    parseBool(v[6]),
		}
		if price, ok := parseFloat(v[7]); ok {
			p.Price = recommend.KnownPrice(price)
		}
		out = append(out, p)
	})
	if err != nil {
		return nil, err
	}

	switch priceCol := used[7]; priceCol {
	case "":
		l.logger.Warn().Msg("Products have no price column; spend features disabled")
	case PriceAliases[0]:
	default:
		l.logger.Info().Str("column", priceCol).Msg("Using alternate price column as unit_price")
	}
	return out, nil
}

// LoadInvoices reads invoice lines.
func (l *Loader) LoadInvoices(ctx context.Context) ([]recommend.InvoiceLine, error) {
	var out []recommend.InvoiceLine
	_, err := l.scanAll(ctx, TableInvoices, l.cfg.Invoices, invoiceColumns, func(v []string) {
		qty, _ := parseFloat(v[2])
		out = append(out, recommend.InvoiceLine{
			CustomerID: v[0],
			ProductID:  v[1],
			Quantity:   qty,
			Date:       parseDate(v[3]),
		})
	})
	return out, err
}

// LoadFeedback reads reviewer feedback. It never fails: every problem is
// reported as an unavailable source.
func (l *Loader) LoadFeedback(ctx context.Context) recommend.FeedbackSource {
	if l.cfg.Feedback == "" {
		return recommend.FeedbackUnavailable("no feedback source configured")
	}

	src, err := l.breaker.Execute(func() (recommend.FeedbackSource, error) {
		return l.loadFeedback(ctx)
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "feedback circuit breaker open"
		}
		l.logger.Warn().Err(err).Msg("Feedback unavailable; continuing without calibration input")
		return recommend.FeedbackUnavailable(reason)
	}
	return src
}

func (l *Loader) loadFeedback(ctx context.Context) (recommend.FeedbackSource, error) {
	var records []recommend.FeedbackRecord
	_, err := l.scanAll(ctx, TableFeedback, l.cfg.Feedback, feedbackColumns, func(v []string) {
		records = append(records, recommend.FeedbackRecord{
			CustomerID: v[0],
			ProductID:  v[1],
			Signal: recommend.Signal{
				Rating:     recommend.ParseRating(v[2]),
				ReasonCode: v[3],
				Polarity:   recommend.ParsePolarity(v[4]),
			},
			Date: parseDate(v[5]),
		})
	})
	if err != nil {
		return recommend.FeedbackSource{}, fmt.Errorf("%w: %v", recommend.ErrUpstreamUnavailable, err)
	}
	return recommend.FeedbackAvailable(records), nil
}
