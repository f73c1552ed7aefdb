package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_pagination_pages_total",
		Help: "Total pages fetched by collection path",
	}, []string{"path"})

	walksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_pagination_walks_total",
		Help: "Total pagination walks by stop reason",
	}, []string{"stop"})
)

// PerPageParam is the page size query parameter.
const PerPageParam = "per_page"

// MaxPerPage is the largest page size the API accepts.
const MaxPerPage = 100

// Config holds pagination configuration.
type Config struct {
	// PerPage is sent as per_page on every request, capped at MaxPerPage.
	PerPage int

	// MaxPages bounds a walk.
	MaxPages int

	// MaxConsecutiveEmpty stops a walk after this many empty pages in a row.
	MaxConsecutiveEmpty int

	// PageDelay is waited between pages. Negative disables the delay.
	PageDelay time.Duration

	// ReturnPartial returns the items gathered so far together with the error
	// when a page request fails, from Walk and All alike. By default they are
	// discarded.
	ReturnPartial bool
}

// DefaultConfig returns the default pagination configuration.
func DefaultConfig() Config {
	return Config{
		PerPage:             MaxPerPage,
		MaxPages:            1000,
		MaxConsecutiveEmpty: 3,
		PageDelay:           500 * time.Millisecond,
	}
}

// Requester executes one logical request. *client.Client implements it.
type Requester interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
}

// StopReason tells why a walk ended.
type StopReason int

const (
	StopNoNext StopReason = iota
	StopMissingToken
	StopEmptyStreak
	StopSingleResource
	StopMaxPages
	StopUnsupportedShape
)

func (s StopReason) String() string {
	switch s {
	case StopNoNext:
		return "no_next"
	case StopMissingToken:
		return "missing_token"
	case StopEmptyStreak:
		return "empty_streak"
	case StopSingleResource:
		return "single_resource"
	case StopMaxPages:
		return "max_pages"
	case StopUnsupportedShape:
		return "unsupported_shape"
	default:
		return fmt.Sprintf("StopReason(%d)", int(s))
	}
}

// Result is the aggregate of a walk. Items keep server order across pages.
type Result struct {
	Items []json.RawMessage
	Pages int
	Stop  StopReason
}

// Driver walks paginated collections.
type Driver struct {
	requester Requester
	config    Config
	sleep     ratelimit.SleepFunc
	logger    zerolog.Logger
}

// NewDriver creates a new pagination driver. Zero config fields take defaults.
func NewDriver(requester Requester, config Config) *Driver {
	def := DefaultConfig()
	if config.PerPage <= 0 {
		config.PerPage = def.PerPage
	}
	if config.PerPage > MaxPerPage {
		config.PerPage = MaxPerPage
	}
	if config.MaxPages <= 0 {
		config.MaxPages = def.MaxPages
	}
	if config.MaxConsecutiveEmpty <= 0 {
		config.MaxConsecutiveEmpty = def.MaxConsecutiveEmpty
	}
	if config.PageDelay == 0 {
		config.PageDelay = def.PageDelay
	}
	if config.PageDelay < 0 {
		config.PageDelay = 0
	}

	return &Driver{
		requester: requester,
		config:    config,
		sleep:     ratelimit.Sleep,
		logger:    logging.NewLogger(logging.ComponentPagination),
	}
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.config
}

// SetSleepFunc replaces the inter-page wait (for testing).
func (d *Driver) SetSleepFunc(fn ratelimit.SleepFunc) {
	d.sleep = fn
}

// Walk fetches every page of the collection at path. params is not modified.
func (d *Driver) Walk(ctx context.Context, path string, params *client.Params) (*Result, error) {
	start := time.Now()
	logger := d.logger.With().Str("path", path).Logger()

	result := &Result{Stop: StopMaxPages}
	var cursor string
	emptyStreak := 0

	fail := func(err error) (*Result, error) {
		logger.Error().
			Err(err).
			Int("pages", result.Pages).
			Int("items", len(result.Items)).
			Msg("Pagination aborted")
		if d.config.ReturnPartial {
			return result, err
		}
		return nil, err
	}

	for result.Pages < d.config.MaxPages {
		pageParams := params.Clone()
		pageParams.Set(PerPageParam, strconv.Itoa(d.config.PerPage))
		if cursor != "" {
			pageParams.Set(PageTokenParam, cursor)
		}

		resp, err := d.requester.Do(ctx, &client.Request{Path: path, Params: pageParams})
		if err != nil {
			return fail(fmt.Errorf("fetch page %d of %s: %w", result.Pages+1, path, err))
		}

		payload, err := resp.Payload()
		if errors.Is(err, client.ErrUnsupportedShape) {
			// A scalar body carries no records and no way forward.
			result.Pages++
			pagesFetchedTotal.WithLabelValues(path).Inc()
			logger.Warn().Err(err).Int("page", result.Pages).Msg("Unrecognized page body, stopping")
			result.Stop = StopUnsupportedShape
			break
		}
		if err != nil {
			return fail(fmt.Errorf("page %d of %s: %w", result.Pages+1, path, err))
		}

		result.Pages++
		pagesFetchedTotal.WithLabelValues(path).Inc()

		if payload.Kind == client.PayloadSingle {
			result.Items = append(result.Items, payload.Item)
			result.Stop = StopSingleResource
			break
		}

		result.Items = append(result.Items, payload.Items...)
		d.logProgress(logger, resp, result, len(payload.Items))

		if len(payload.Items) == 0 {
			emptyStreak++
			if emptyStreak >= d.config.MaxConsecutiveEmpty {
				logger.Warn().
					Int("empty_pages", emptyStreak).
					Msg("Too many consecutive empty pages, stopping")
				result.Stop = StopEmptyStreak
				break
			}
		} else {
			emptyStreak = 0
		}

		next, ok := NextLink(resp.Header)
		if !ok {
			result.Stop = StopNoNext
			break
		}

		token, ok := PageToken(next)
		if !ok {
			logger.Warn().Str("next", next).Msg("Next link has no page_token, stopping")
			result.Stop = StopMissingToken
			break
		}
		cursor = token

		if result.Pages >= d.config.MaxPages {
			break
		}

		if d.config.PageDelay > 0 {
			if err := d.sleep(ctx, d.config.PageDelay); err != nil {
				return fail(fmt.Errorf("%w: %w", client.ErrContextCancelled, err))
			}
		}
	}

	if result.Stop == StopMaxPages {
		logger.Warn().
			Int("max_pages", d.config.MaxPages).
			Msg("Reached page limit, stopping")
	}

	walksTotal.WithLabelValues(result.Stop.String()).Inc()
	logger.Info().
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Str("stop", result.Stop.String()).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return result, nil
}

// logProgress reports the first three pages and every fifth after that.
func (d *Driver) logProgress(logger zerolog.Logger, resp *client.Response, result *Result, pageItems int) {
	if result.Pages > 3 && result.Pages%5 != 0 {
		return
	}

	event := logger.Info().
		Int("page", result.Pages).
		Int("page_items", pageItems).
		Int("items", len(result.Items))
	if total, err := strconv.Atoi(resp.Header.Get("Item-Count")); err == nil {
		event = event.Int("total", total)
	}
	event.Msg("Fetched page")
}

// All walks the collection and decodes every item into T. With ReturnPartial
// a failed walk yields the items decoded so far along with the error.
func All[T any](ctx context.Context, d *Driver, path string, params *client.Params) ([]T, error) {
	result, walkErr := d.Walk(ctx, path, params)
	if result == nil {
		return nil, walkErr
	}

	out := make([]T, 0, len(result.Items))
	for i, raw := range result.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode item %d of %s: %w", i, path, err)
		}
		out = append(out, item)
	}
	return out, walkErr
}
