package repo

import (
	"github.com/KNICEX/spin-perp/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.OrderRecord{}, &entity.AccountSnapshot{})
}
