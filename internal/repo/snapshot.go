package repo

import (
	"context"
	"errors"

	"github.com/KNICEX/spin-perp/internal/entity"
	"gorm.io/gorm"
)

type SnapshotRepo interface {
	Create(ctx context.Context, snapshot entity.AccountSnapshot) (int64, error)
	Latest(ctx context.Context, accountId string) (entity.AccountSnapshot, error)
}

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) SnapshotRepo {
	return &snapshotRepo{
		db: db,
	}
}

func (r *snapshotRepo) Create(ctx context.Context, snapshot entity.AccountSnapshot) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return 0, err
	}
	return snapshot.Id, nil
}

func (r *snapshotRepo) Latest(ctx context.Context, accountId string) (entity.AccountSnapshot, error) {
	var snapshot entity.AccountSnapshot
	err := r.db.WithContext(ctx).Where("account_id = ?", accountId).Order("id desc").First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.AccountSnapshot{}, ErrRecordNotFound
	}
	if err != nil {
		return entity.AccountSnapshot{}, err
	}
	return snapshot, nil
}
