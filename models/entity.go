package models

import (
	"context"
	"errors"

	"github.com/bpopendata/budget_backend/config"
	"github.com/bpopendata/budget_backend/utils"
	"gorm.io/gorm"
)

// Entity is a public-sector organization from the national registry.
// Reference data: loaded by ingestion, read-only here.
type Entity struct {
	CUI        string  `gorm:"primaryKey;size:20" json:"cui"`
	Name       string  `gorm:"index;size:255;not null" json:"name"`
	SectorType string  `gorm:"index;size:50" json:"sector_type"`
	UATId      *int    `gorm:"index" json:"uat_id"`
	IsUAT      bool    `gorm:"not null;default:false" json:"is_uat"`
	Address    *string `gorm:"type:text" json:"address,omitempty"`
}

func (Entity) TableName() string {
	return "entities"
}

// TerritorialUnit (UAT) is an administrative region. Reference data,
// read-only here. Population may be unset for freshly ingested units.
type TerritorialUnit struct {
	ID         int    `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"index;size:255;not null" json:"name"`
	Population *int64 `json:"population"`
	CountyCode string `gorm:"index;size:4" json:"county_code"`
	Region     string `gorm:"index;size:50" json:"region"`
}

func (TerritorialUnit) TableName() string {
	return "uats"
}

// ErrNotFound is the lookup miss translation of gorm.ErrRecordNotFound.
var ErrNotFound = utils.ErrorRecordNotFound

func GetEntityByCUI(ctx context.Context, cui string) (*Entity, error) {
	var entity Entity
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("cui = ?", cui).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

func GetTerritorialUnit(ctx context.Context, id int) (*TerritorialUnit, error) {
	var uat TerritorialUnit
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).First(&uat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &uat, nil
}

// SearchEntities looks up entities by name fragment or exact CUI, capped to
// keep the autocomplete endpoint cheap.
func SearchEntities(ctx context.Context, term string, limit int) ([]*Entity, error) {
	if limit <= 0 || limit > 50 {
		limit = config.SearchLimit
	}
	var entities []*Entity
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Entity{})
	if term != "" {
		dbCtx = dbCtx.Where("cui = ? OR name LIKE ?", term, "%"+term+"%")
	}
	if err := dbCtx.Order("name ASC").Limit(limit).Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}
