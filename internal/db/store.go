package db

import (
	"errors"
	"strings"

	"github.com/pokerjest/mediasorter/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the config KV table and the alias override table.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// ConfigMap returns every key/value pair.
func (s *Store) ConfigMap() (map[string]string, error) {
	var configs []model.GlobalConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(configs))
	for _, c := range configs {
		out[c.Key] = c.Value
	}
	return out, nil
}

func (s *Store) GetConfig(key string) (string, bool, error) {
	var cfg model.GlobalConfig
	err := s.db.Where("key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cfg.Value, true, nil
}

func (s *Store) SetConfig(key, value string) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model.GlobalConfig{Key: key, Value: value}).Error
}

// LookupAlias finds an override for title (case-insensitive, trimmed).
func (s *Store) LookupAlias(title string) (string, int, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", 0, false
	}
	var a model.AliasOverride
	if err := s.db.Where("LOWER(alias) = ?", strings.ToLower(title)).First(&a).Error; err != nil {
		return "", 0, false
	}
	return a.TargetTitle, a.TargetSeason, true
}

// PutAlias inserts or replaces an override.
func (s *Store) PutAlias(alias, target string, season int) error {
	alias = strings.TrimSpace(alias)
	target = strings.TrimSpace(target)
	if alias == "" || target == "" {
		return errors.New("alias and target must not be empty")
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alias"}},
		DoUpdates: clause.AssignmentColumns([]string{"target_title", "target_season", "updated_at"}),
	}).Create(&model.AliasOverride{Alias: alias, TargetTitle: target, TargetSeason: season}).Error
}

func (s *Store) ListAliases() ([]model.AliasOverride, error) {
	var list []model.AliasOverride
	err := s.db.Order("alias").Find(&list).Error
	return list, err
}

func (s *Store) DeleteAlias(alias string) error {
	return s.db.Where("alias = ?", strings.TrimSpace(alias)).Delete(&model.AliasOverride{}).Error
}
