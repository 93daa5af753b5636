package repo

import (
	"context"
	"errors"

	"github.com/KNICEX/spin-perp/internal/entity"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

type OrderRepo interface {
	Create(ctx context.Context, record entity.OrderRecord) (int64, error)
	UpdateStatus(ctx context.Context, exchange, orderId, status string) error
	FindByMarket(ctx context.Context, accountId string, marketId uint64) ([]entity.OrderRecord, error)
	// MaxOrderId 该交易所已记录的最大数字订单号, 没有记录时为 0
	MaxOrderId(ctx context.Context, exchange string) (uint64, error)
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepo {
	return &orderRepo{
		db: db,
	}
}

func (r *orderRepo) Create(ctx context.Context, record entity.OrderRecord) (int64, error) {
	err := r.db.WithContext(ctx).Create(&record).Error
	if err != nil {
		return 0, err
	}
	return record.Id, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, exchange, orderId, status string) error {
	res := r.db.WithContext(ctx).Model(&entity.OrderRecord{}).
		Where("exchange = ? AND order_id = ?", exchange, orderId).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *orderRepo) FindByMarket(ctx context.Context, accountId string, marketId uint64) ([]entity.OrderRecord, error) {
	var records []entity.OrderRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND market_id = ?", accountId, marketId).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *orderRepo) MaxOrderId(ctx context.Context, exchange string) (uint64, error) {
	var maxId int64
	err := r.db.WithContext(ctx).Model(&entity.OrderRecord{}).
		Where("exchange = ?", exchange).
		Select("COALESCE(MAX(CAST(order_id AS INTEGER)), 0)").
		Scan(&maxId).Error
	if err != nil {
		return 0, err
	}
	if maxId < 0 {
		return 0, nil
	}
	return uint64(maxId), nil
}
