package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelConfigStore resolves a shop's notification destinations. A shop
// with no stored row resolves to the defaults, never to an error.
type ChannelConfigStore interface {
	Get(ctx context.Context, shopID string) (models.ChannelConfig, error)
}

// ChannelConfigWriter is implemented by stores that accept admin updates.
type ChannelConfigWriter interface {
	ChannelConfigStore
	Upsert(ctx context.Context, cfg models.ChannelConfig) error
}

// StaticChannelConfigStore serves configs loaded from the environment.
type StaticChannelConfigStore struct {
	shops    map[string]models.ChannelConfig
	defaults models.ChannelConfig
}

func NewStaticChannelConfigStore(shops map[string]models.ChannelConfig, defaults models.ChannelConfig) *StaticChannelConfigStore {
	copied := make(map[string]models.ChannelConfig, len(shops))
	for id, cfg := range shops {
		cfg.ShopID = id
		copied[id] = cfg
	}
	return &StaticChannelConfigStore{shops: copied, defaults: defaults}
}

func (s *StaticChannelConfigStore) Get(_ context.Context, shopID string) (models.ChannelConfig, error) {
	if cfg, ok := s.shops[shopID]; ok {
		return cfg, nil
	}
	cfg := s.defaults
	cfg.ShopID = shopID
	return cfg, nil
}

type gormChannelConfigStore struct {
	db       *gorm.DB
	fallback ChannelConfigStore
}

// NewGormChannelConfigStore reads shop_channels, falling back for shops that
// have no row.
func NewGormChannelConfigStore(db *gorm.DB, fallback ChannelConfigStore) ChannelConfigWriter {
	return &gormChannelConfigStore{db: db, fallback: fallback}
}

func (r *gormChannelConfigStore) Get(ctx context.Context, shopID string) (models.ChannelConfig, error) {
	var row models.ShopChannel
	err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.fallback.Get(ctx, shopID)
	}
	if err != nil {
		return models.ChannelConfig{}, fmt.Errorf("load channel config for %s: %w", shopID, err)
	}
	return row.ToConfig(), nil
}

func (r *gormChannelConfigStore) Upsert(ctx context.Context, cfg models.ChannelConfig) error {
	row := models.ShopChannelFromConfig(cfg)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_destination", "email_recipient", "invoice_asset_path", "updated_at"}),
		}).
		Create(&row).Error
}
