package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"exchange_pro/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const watchlistSeededKey = "watchlist_seeded"

// Storage persists watchlist, alerts, settings and symbol assets in SQLite
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path. An empty path uses the per-user default.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.WatchlistItem{}, &domain.Alert{}, &domain.SymbolAsset{}, &domain.AppConfig{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "ExchangePro", "data", "exchange_pro.db"), nil
}

// Close releases the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Watchlist Operations
// ======================================================================================

// SeedWatchlist inserts defaults the first time the database is used.
// A list the user has emptied is not re-seeded.
func (s *Storage) SeedWatchlist(defaults []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var marker domain.AppConfig
		err := tx.First(&marker, "key = ?", watchlistSeededKey).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		for i, sym := range defaults {
			if err := tx.Save(&domain.WatchlistItem{Symbol: sym, Position: i}).Error; err != nil {
				return err
			}
		}
		return tx.Save(&domain.AppConfig{Key: watchlistSeededKey, Value: "1"}).Error
	})
}

// WatchlistSymbols returns symbols in insertion order
func (s *Storage) WatchlistSymbols() ([]string, error) {
	var items []domain.WatchlistItem
	if err := s.db.Order("position asc").Find(&items).Error; err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Symbol
	}
	return out, nil
}

// AddWatchlist appends symbol. Returns false if it was already present.
func (s *Storage) AddWatchlist(symbol string) (bool, error) {
	var added bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.WatchlistItem
		err := tx.First(&existing, "symbol = ?", symbol).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxPos sql.NullInt64
		if err := tx.Model(&domain.WatchlistItem{}).Select("MAX(position)").Row().Scan(&maxPos); err != nil {
			return err
		}
		next := 0
		if maxPos.Valid {
			next = int(maxPos.Int64) + 1
		}
		if err := tx.Create(&domain.WatchlistItem{Symbol: symbol, Position: next}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// RemoveWatchlist deletes symbol. Returns false if it was not present.
func (s *Storage) RemoveWatchlist(symbol string) (bool, error) {
	res := s.db.Where("symbol = ?", symbol).Delete(&domain.WatchlistItem{})
	return res.RowsAffected > 0, res.Error
}

// ======================================================================================
// Alert Operations
// ======================================================================================

// SaveAlert creates or updates an alert
func (s *Storage) SaveAlert(alert *domain.Alert) error {
	return s.db.Save(alert).Error
}

// ListAlerts returns all alerts, oldest first
func (s *Storage) ListAlerts() ([]domain.Alert, error) {
	var alerts []domain.Alert
	err := s.db.Order("created_at asc").Find(&alerts).Error
	return alerts, err
}

// DeleteAlert removes an alert by ID
func (s *Storage) DeleteAlert(id string) error {
	res := s.db.Where("id = ?", id).Delete(&domain.Alert{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// ======================================================================================
// Symbol Asset Operations
// ======================================================================================

// UpsertAsset creates or updates symbol metadata
func (s *Storage) UpsertAsset(asset *domain.SymbolAsset) error {
	return s.db.Save(asset).Error
}

// GetAsset retrieves symbol metadata
func (s *Storage) GetAsset(symbol string) (*domain.SymbolAsset, error) {
	var asset domain.SymbolAsset
	err := s.db.First(&asset, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &asset, err
}

// ListAssets retrieves all synced symbol metadata
func (s *Storage) ListAssets() ([]domain.SymbolAsset, error) {
	var assets []domain.SymbolAsset
	err := s.db.Find(&assets).Error
	return assets, err
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
