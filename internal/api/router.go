package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/indicator"
	"exchange_pro/internal/infra"
	"exchange_pro/internal/infra/council"
	"exchange_pro/internal/service"
)

const searchLimit = 10

// defaultOverlays are the SMA periods drawn when the client does not ask for any
var defaultOverlays = []int{20, 50}

// Council is the advisory connection as seen by the routes
type Council interface {
	Ask(question string) error
	Transcript() []council.Envelope
	IsConnected() bool
}

// Controller performs the operations that span several services
type Controller interface {
	Focus(ctx context.Context, symbol, timeframe string) error
	ApplySettings(ctx context.Context, update domain.SettingsUpdate) error
	Connectivity() domain.ConnectivityState
	Polling() bool
}

// Deps are the collaborators the routes read from and write to
type Deps struct {
	Prices    *service.PriceService
	Chart     *service.ChartService
	Alerts    *service.AlertService
	Watchlist *service.WatchlistService
	News      *service.NewsService
	Council   Council
	Control   Controller
	Metrics   *infra.Metrics
}

type focusRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

type watchlistRequest struct {
	Symbol string `json:"symbol"`
}

type alertRequest struct {
	Symbol    string          `json:"symbol"`
	Condition string          `json:"condition"`
	Price     decimal.Decimal `json:"price"`
}

type askRequest struct {
	Question string `json:"question"`
}

func fail(c *app.RequestContext, status int, msg string) {
	c.JSON(status, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

func RegisterRoutes(h *server.Hertz, d Deps) {
	if d.Metrics == nil {
		d.Metrics = infra.GlobalMetrics
	}

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	v1 := h.Group("/api/v1")

	v1.GET("/symbols", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"symbols": domain.Registry(),
		})
	})

	v1.GET("/search", func(_ context.Context, c *app.RequestContext) {
		q := strings.TrimSpace(c.Query("q"))
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"results": domain.SearchSymbols(q, searchLimit),
		})
	})

	v1.GET("/quotes", func(_ context.Context, c *app.RequestContext) {
		resp := map[string]any{
			"ok":      true,
			"focused": d.Prices.Focused(),
			"quotes":  d.Prices.Snapshot(),
		}
		if p, ok := d.Prices.Projection(); ok {
			resp["projection"] = p
		}
		c.JSON(http.StatusOK, resp)
	})

	v1.GET("/status", func(_ context.Context, c *app.RequestContext) {
		state := d.Control.Connectivity()
		online := d.Council != nil && d.Council.IsConnected()
		c.JSON(http.StatusOK, map[string]any{
			"ok":             true,
			"connectivity":   string(state),
			"label":          state.Label(),
			"polling":        d.Control.Polling(),
			"council_online": online,
			"metrics":        d.Metrics.Snapshot(),
		})
	})

	v1.POST("/focus", func(ctx context.Context, c *app.RequestContext) {
		var req focusRequest
		if err := c.BindJSON(&req); err != nil || req.Symbol == "" {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := d.Control.Focus(ctx, req.Symbol, req.Timeframe); err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"symbol": req.Symbol,
		})
	})

	v1.GET("/chart", func(ctx context.Context, c *app.RequestContext) {
		if tf := c.Query("timeframe"); tf != "" && tf != d.Chart.Timeframe().Name {
			if err := d.Control.Focus(ctx, d.Prices.Focused(), tf); err != nil {
				fail(c, statusFor(err), err.Error())
				return
			}
		}
		periods, err := parsePeriods(c.Query("sma"))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		overlays := make(map[string][]indicator.Point, len(periods))
		for _, p := range periods {
			overlays[strconv.Itoa(p)] = d.Chart.Overlay(p)
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"symbol":    d.Chart.Symbol(),
			"timeframe": d.Chart.Timeframe().Name,
			"bars":      d.Chart.Bars(),
			"sma":       overlays,
		})
	})

	v1.GET("/watchlist", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"symbols": d.Watchlist.Items(),
		})
	})

	v1.POST("/watchlist", func(_ context.Context, c *app.RequestContext) {
		var req watchlistRequest
		if err := c.BindJSON(&req); err != nil || req.Symbol == "" {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		added, err := d.Watchlist.Add(req.Symbol)
		if err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"added": added,
		})
	})

	v1.DELETE("/watchlist/:symbol", func(_ context.Context, c *app.RequestContext) {
		removed, err := d.Watchlist.Remove(c.Param("symbol"))
		if err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"removed": removed,
		})
	})

	v1.GET("/alerts", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"alerts": d.Alerts.List(),
		})
	})

	v1.POST("/alerts", func(_ context.Context, c *app.RequestContext) {
		var req alertRequest
		if err := c.BindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		cond, err := domain.ParseAlertCondition(req.Condition)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if !req.Price.IsPositive() {
			fail(c, http.StatusBadRequest, "price must be positive")
			return
		}
		alert, err := d.Alerts.Add(req.Symbol, cond, req.Price)
		if err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"alert": alert,
		})
	})

	v1.DELETE("/alerts/:id", func(_ context.Context, c *app.RequestContext) {
		if err := d.Alerts.Remove(c.Param("id")); err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	v1.GET("/news", func(ctx context.Context, c *app.RequestContext) {
		digest, ok := d.News.Latest(ctx)
		if !ok {
			c.JSON(http.StatusOK, map[string]any{
				"ok":        true,
				"available": false,
				"items":     []domain.NewsItem{},
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":          true,
			"available":   true,
			"items":       digest.Items,
			"bullish_pct": digest.BullishPct,
			"bearish_pct": digest.BearishPct,
			"neutral_pct": digest.NeutralPct,
		})
	})

	v1.POST("/council/ask", func(_ context.Context, c *app.RequestContext) {
		var req askRequest
		if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if d.Council == nil {
			fail(c, http.StatusServiceUnavailable, domain.ErrNotConnected.Error())
			return
		}
		if err := d.Council.Ask(req.Question); err != nil {
			fail(c, statusFor(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	v1.GET("/council/messages", func(_ context.Context, c *app.RequestContext) {
		var msgs []council.Envelope
		online := false
		if d.Council != nil {
			msgs = d.Council.Transcript()
			online = d.Council.IsConnected()
		}
		if msgs == nil {
			msgs = []council.Envelope{}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":       true,
			"online":   online,
			"messages": msgs,
		})
	})

	v1.PUT("/settings", func(ctx context.Context, c *app.RequestContext) {
		var req domain.SettingsUpdate
		if err := c.BindJSON(&req); err != nil || req.Empty() {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.CouncilURL != nil {
			if err := infra.ValidateCouncilURL(*req.CouncilURL); err != nil {
				fail(c, http.StatusBadRequest, err.Error())
				return
			}
		}
		if req.RefreshIntervalMS != nil && *req.RefreshIntervalMS <= 0 {
			fail(c, http.StatusBadRequest, "refresh_interval_ms must be positive")
			return
		}
		if err := d.Control.ApplySettings(ctx, req); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
}

// parsePeriods reads a comma-separated list of SMA periods
func parsePeriods(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultOverlays, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, errors.New("sma must be a list of positive integers")
		}
		out = append(out, n)
	}
	return out, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol), errors.Is(err, domain.ErrInvalidCondition):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
