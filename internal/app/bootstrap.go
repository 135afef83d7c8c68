package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/engine"
	"exchange_pro/internal/infra"
	"exchange_pro/internal/infra/council"
	"exchange_pro/internal/infra/finnhub"
	"exchange_pro/internal/infra/storage"
	"exchange_pro/internal/service"
)

// Bootstrap orchestrates the application startup sequence and owns every long-lived component
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.LogoDownloader
	Metrics    *infra.Metrics

	Client    *finnhub.Client
	Source    *finnhub.Source
	Scheduler *engine.Scheduler
	Council   *council.Client

	Prices    *service.PriceService
	Chart     *service.ChartService
	Alerts    *service.AlertService
	Watchlist *service.WatchlistService
	News      *service.NewsService

	focusMu    sync.Mutex
	mu         sync.Mutex
	pollCtx    context.Context
	councilCtx context.Context
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Metrics: infra.GlobalMetrics}
}

// Initialize performs core system initialization (config, logger, DB, services)
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping Exchange Pro...", slog.String("version", cfg.App.Version))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Persisted settings win over file and env
	if err := b.loadSettings(); err != nil {
		return err
	}

	// 5. Logo downloader
	downloader, err := infra.NewLogoDownloader(cfg.Assets.LogoDir, cfg.Assets.LogoSize)
	if err != nil {
		return err
	}
	b.Downloader = downloader

	return b.wire()
}

// loadSettings overlays the user settings saved by the settings screen onto the config
func (b *Bootstrap) loadSettings() error {
	saved, err := b.Storage.LoadConfigMap()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if v, ok := saved[domain.SettingFinnhubKey]; ok {
		b.Config.API.Finnhub.APIKey = v
	}
	if v, ok := saved[domain.SettingCouncilURL]; ok && infra.ValidateCouncilURL(v) == nil {
		b.Config.API.Council.WSURL = v
	}
	if v, ok := saved[domain.SettingRefreshInterval]; ok {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			b.Config.Market.RefreshIntervalMS = ms
		}
	}
	return nil
}

// wire builds the market data pipeline and its collaborators from the loaded config
func (b *Bootstrap) wire() error {
	cfg := b.Config

	cache := finnhub.NewCache(time.Duration(cfg.Market.CacheWindowMS)*time.Millisecond, time.Now)
	b.Client = finnhub.NewClient(
		cfg.API.Finnhub.RestURL,
		cfg.API.Finnhub.APIKey,
		cache,
		time.Duration(cfg.API.Finnhub.TimeoutMS)*time.Millisecond,
		b.Metrics,
	)
	b.Source = finnhub.NewSource(b.Client, b.Metrics, finnhub.WithCandleCount(cfg.Market.CandleCount))
	b.Source.Session().Subscribe(func(s domain.ConnectivityState) {
		slog.Info("📶 Connectivity changed", slog.String("state", s.Label()))
	})

	alerts, err := service.NewAlertService(b.Storage, b.Metrics)
	if err != nil {
		return err
	}
	b.Alerts = alerts
	b.Alerts.OnTrigger(func(a domain.Alert, price decimal.Decimal) {
		slog.Info("ALERT: "+a.Symbol+" is now "+string(a.Condition)+" "+a.Threshold.String(),
			slog.String("price", price.String()))
	})

	watchlist, err := service.NewWatchlistService(b.Storage)
	if err != nil {
		return err
	}
	b.Watchlist = watchlist

	b.Chart = service.NewChartService(b.Source)
	b.Prices = service.NewPriceService(cfg.Market.DefaultSymbol, b.Alerts, b.Chart)
	b.News = service.NewNewsService(b.Source)

	b.Scheduler = engine.NewScheduler(
		b.Source,
		time.Duration(cfg.Market.RefreshIntervalMS)*time.Millisecond,
		b.Metrics,
	)
	b.Council = council.NewClient(
		cfg.API.Council.WSURL,
		council.WithReconnect(
			cfg.API.Council.MaxReconnectAttempts,
			time.Duration(cfg.API.Council.ReconnectDelayMS)*time.Millisecond,
		),
		council.WithMetrics(b.Metrics),
		council.WithStatusHandler(func(online bool) {
			slog.Info("🏛️ AI Council status", slog.Bool("online", online))
		}),
	)
	return nil
}

// Start loads the default chart, starts polling and connects the council
func (b *Bootstrap) Start(ctx context.Context) {
	if err := b.Focus(ctx, b.Config.Market.DefaultSymbol, b.Config.Market.DefaultTimeframe); err != nil {
		slog.Warn("Failed to load default chart", slog.Any("error", err))
	}

	b.mu.Lock()
	b.pollCtx = ctx
	b.councilCtx = ctx
	b.mu.Unlock()

	b.startPolling(ctx)
	if err := b.Council.Connect(ctx); err != nil {
		slog.Warn("Failed to connect AI Council", slog.Any("error", err))
	}
}

func (b *Bootstrap) startPolling(ctx context.Context) {
	b.Scheduler.Start(ctx, domain.RegistrySymbols(), b.Prices.OnQuote)
	slog.InfoContext(ctx, "✅ Market poller started", slog.Duration("interval", b.Scheduler.Interval()))
}

// Focus switches the detail view to symbol and loads its chart.
// Focus changes are serialized and the new bars are installed before focus moves,
// so the chart never holds one symbol's bars while another is focused.
func (b *Bootstrap) Focus(ctx context.Context, symbol, timeframe string) error {
	if _, ok := domain.LookupSymbol(symbol); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}

	b.focusMu.Lock()
	defer b.focusMu.Unlock()

	if timeframe == "" {
		timeframe = b.Chart.Timeframe().Name
	}
	b.Chart.LoadChart(ctx, symbol, timeframe)
	b.Prices.SetFocus(symbol)
	if q, ok := b.Source.FetchQuote(ctx, symbol); ok {
		b.Prices.SetProjection(symbol, q)
	}
	return nil
}

// ApplySettings persists update and applies it to the running components
func (b *Bootstrap) ApplySettings(ctx context.Context, update domain.SettingsUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if update.FinnhubKey != nil {
		if err := b.Storage.SaveConfig(domain.SettingFinnhubKey, *update.FinnhubKey); err != nil {
			return err
		}
		b.Config.API.Finnhub.APIKey = *update.FinnhubKey
		b.Source.ResetSession(*update.FinnhubKey)
	}

	if update.RefreshIntervalMS != nil {
		ms := *update.RefreshIntervalMS
		if err := b.Storage.SaveConfig(domain.SettingRefreshInterval, strconv.Itoa(ms)); err != nil {
			return err
		}
		b.Config.Market.RefreshIntervalMS = ms
		b.Scheduler.SetInterval(time.Duration(ms) * time.Millisecond)
	}

	if (update.FinnhubKey != nil || update.RefreshIntervalMS != nil) && b.pollCtx != nil {
		b.startPolling(b.pollCtx)
	}

	if update.CouncilURL != nil {
		if err := b.Storage.SaveConfig(domain.SettingCouncilURL, *update.CouncilURL); err != nil {
			return err
		}
		b.Config.API.Council.WSURL = *update.CouncilURL
		b.Council.SetURL(*update.CouncilURL)
		if b.councilCtx != nil {
			if err := b.Council.Connect(b.councilCtx); err != nil {
				slog.Warn("Failed to reconnect AI Council", slog.Any("error", err))
			}
		}
	}

	slog.Info("⚙️ Settings applied")
	return nil
}

// Connectivity reports the market data session state
func (b *Bootstrap) Connectivity() domain.ConnectivityState {
	return b.Source.Session().State()
}

// Polling reports whether the poller is armed
func (b *Bootstrap) Polling() bool {
	return b.Scheduler.Running()
}

// SyncAssets fetches profiles and logos for every registry symbol in the background
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting asset synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, symbol := range domain.RegistrySymbols() {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			profile := b.Source.FetchProfile(ctx, sym)
			asset := &domain.SymbolAsset{
				Symbol:    sym,
				Name:      profile.Name,
				MarketCap: profile.MarketCapitalization,
				UpdatedAt: time.Now(),
			}

			// Preserve a logo synced on an earlier run
			if existing, _ := b.Storage.GetAsset(sym); existing != nil {
				asset.LogoPath = existing.LogoPath
				asset.LastSyncedAt = existing.LastSyncedAt
				asset.CreatedAt = existing.CreatedAt
			}

			if profile.Logo != "" {
				path, err := b.Downloader.Download(ctx, sym, profile.Logo)
				if err != nil {
					slog.Warn("Failed to download logo", slog.String("symbol", sym), slog.Any("error", err))
				} else {
					asset.LogoPath = path
					asset.LastSyncedAt = time.Now()
				}
			}

			if err := b.Storage.UpsertAsset(asset); err != nil {
				slog.Error("Failed to upsert asset", slog.String("symbol", sym), slog.Any("error", err))
			}
		}(symbol)
	}

	wg.Wait()
	slog.Info("✨ Asset synchronization completed")
}

// Shutdown stops polling, closes the council connection and the database
func (b *Bootstrap) Shutdown() {
	if b.Scheduler != nil {
		b.Scheduler.Stop()
	}
	if b.Council != nil {
		b.Council.Disconnect()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close database", slog.Any("error", err))
		}
	}
}
