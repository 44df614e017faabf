package cftc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"CrowdedCOT/internal/domain/models"
	drepo "CrowdedCOT/internal/domain/repository"
	xhttp "CrowdedCOT/pkg/http"
	"CrowdedCOT/pkg/logger"
	"CrowdedCOT/pkg/util"
)

const (
	DefaultBaseURL = "https://publicreporting.cftc.gov/resource"
	DefaultDataset = "TFF_COMBINED"
	DefaultLimit   = 50000
	DefaultTimeout = 30 * time.Second
)

// DatasetIDs maps logical dataset names to Socrata identifiers. Unknown names
// are used verbatim.
var DatasetIDs = map[string]string{
	"TFF_COMBINED": "6p9r-dwsc",
}

// Socrata column names of the fields we read.
const (
	colReportDate   = "as_of_date_in_form_yyyymmdd"
	colMarketName   = "market_and_exchange_names"
	colOpenInterest = "open_interest_all"
)

var positionColumns = map[models.Category][2]string{
	models.AssetManager:   {"asset_mgr_long_all", "asset_mgr_short_all"},
	models.LeveragedFunds: {"lev_fund_long_all", "lev_fund_short_all"},
}

// Client loads TFF observations from the CFTC Public Reporting Environment.
type Client struct {
	baseURL    string
	dataset    string
	apiToken   string
	start      time.Time
	end        time.Time
	limit      int
	maxRetries int
	backoff    time.Duration

	http    *xhttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithDataset accepts a DatasetIDs key or an explicit Socrata id.
func WithDataset(id string) Option { return func(c *Client) { c.dataset = id } }

func WithAPIToken(token string) Option { return func(c *Client) { c.apiToken = token } }

// WithEndDate bounds the query inclusively. A zero time means open-ended.
func WithEndDate(end time.Time) Option { return func(c *Client) { c.end = end } }

func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithRetries re-sends a failed request up to n times with exponential
// backoff. Only transport errors, 429 and 5xx are retried. The default is 0.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.backoff = backoff
	}
}

// WithRateLimit paces outgoing requests to rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *logger.Logger) Option { return func(c *Client) { c.log = l } }

// New creates a loader for reports on or after start.
func New(start time.Time, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		dataset: DefaultDataset,
		start:   start,
		limit:   DefaultLimit,
		backoff: time.Second,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(DefaultTimeout))
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cftc-pre",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

// Kind implements repository.DataSource.
func (c *Client) Kind() drepo.SourceKind { return drepo.SourceCFTC }

// ResolveDataset maps a logical dataset name to its Socrata id.
func ResolveDataset(id string) string {
	if v, ok := DatasetIDs[id]; ok {
		return v
	}
	return id
}

// Query returns the SoQL parameters for the configured range and markets.
func (c *Client) Query() map[string][]string {
	selectCols := []string{colReportDate, colMarketName, colOpenInterest}
	for _, cat := range models.PrimaryCategories {
		cols := positionColumns[cat]
		selectCols = append(selectCols, cols[0], cols[1])
	}

	where := []string{fmt.Sprintf("%s >= '%s'", colReportDate, util.FormatDate(c.start))}
	if !c.end.IsZero() {
		where = append(where, fmt.Sprintf("%s <= '%s'", colReportDate, util.FormatDate(c.end)))
	}

	markets := make([]string, 0, len(drepo.MarketAliases))
	for _, code := range drepo.ContractCodes() {
		quoted := make([]string, 0, len(drepo.MarketAliases[code]))
		for _, alias := range drepo.MarketAliases[code] {
			quoted = append(quoted, "'"+strings.ReplaceAll(strings.ToUpper(alias), "'", "''")+"'")
		}
		markets = append(markets, fmt.Sprintf("upper(%s) in (%s)", colMarketName, strings.Join(quoted, ",")))
	}
	where = append(where, "("+strings.Join(markets, " OR ")+")")

	return map[string][]string{
		"$select": {strings.Join(selectCols, ",")},
		"$where":  {strings.Join(where, " AND ")},
		"$order":  {colReportDate},
		"$limit":  {strconv.Itoa(c.limit)},
	}
}

// Load fetches the report rows and converts them to a table. Rows whose market
// name matches no known contract are dropped.
func (c *Client) Load(ctx context.Context) (*models.Table, error) {
	url := fmt.Sprintf("%s/%s.json", c.baseURL, ResolveDataset(c.dataset))
	headers := map[string]string{"Accept": "application/json"}
	if c.apiToken != "" {
		headers["X-App-Token"] = c.apiToken
	}
	opts := &xhttp.RequestOptions{
		URL:         url,
		Headers:     headers,
		QueryParams: c.Query(),
	}

	var records []map[string]interface{}
	if err := c.fetch(ctx, opts, &records); err != nil {
		return nil, fmt.Errorf("cftc load: %w", err)
	}

	t := &models.Table{Categories: models.PrimaryCategories}
	dropped := 0
	for _, rec := range records {
		o, ok := toObservation(rec)
		if !ok {
			dropped++
			continue
		}
		t.Rows = append(t.Rows, o)
	}

	c.log.Info("cftc: loaded",
		logger.String("dataset", ResolveDataset(c.dataset)),
		logger.Int("records", len(records)),
		logger.Int("rows", len(t.Rows)),
		logger.Int("dropped", dropped))
	return t, nil
}

func (c *Client) fetch(ctx context.Context, opts *xhttp.RequestOptions, dest *[]map[string]interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			c.log.Warn("cftc: retrying",
				logger.Int("attempt", attempt),
				logger.Duration("wait_ms", wait),
				logger.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			*dest = nil
			return nil, c.http.GetJSON(ctx, opts, dest)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func toObservation(rec map[string]interface{}) (models.Observation, bool) {
	name := strings.TrimSpace(str(rec[colMarketName]))
	contract, ok := drepo.ResolveContract(name)
	if !ok {
		return models.Observation{}, false
	}
	date, ok := util.ParseDate(str(rec[colReportDate]))
	if !ok {
		return models.Observation{}, false
	}

	o := models.Observation{
		ReportDate:   date,
		Contract:     contract,
		MarketName:   name,
		OpenInterest: num(rec[colOpenInterest]),
		Positions:    make(map[models.Category]models.Position, len(positionColumns)),
	}
	for cat, cols := range positionColumns {
		o.Positions[cat] = models.Position{Long: num(rec[cols[0]]), Short: num(rec[cols[1]])}
	}
	return o, true
}

func str(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// num coerces a Socrata cell; Socrata encodes numbers as strings.
func num(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) {
			return math.NaN()
		}
		return x
	case string:
		return util.ParseNumber(x)
	default:
		return math.NaN()
	}
}

var _ drepo.DataSource = (*Client)(nil)
