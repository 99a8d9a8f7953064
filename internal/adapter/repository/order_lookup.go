package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/harborpay/reconciler/internal/domain/model"
	domainRepo "github.com/harborpay/reconciler/internal/domain/repository"
)

type orderLookup struct {
	db *gorm.DB
}

// NewOrderLookup creates the product category lookup used to enrich
// emitted status events
func NewOrderLookup(db *gorm.DB) domainRepo.OrderLookup {
	return &orderLookup{db: db}
}

func (l *orderLookup) ProductCategory(ctx context.Context, requestID int64) (string, error) {
	var category *string

	err := l.db.WithContext(ctx).
		Model(&model.OrderSnapshot{}).
		Select("product_category").
		Where("request_id = ?", requestID).
		Scan(&category).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up product category: %w", err)
	}
	if category == nil {
		return "", nil
	}
	return *category, nil
}
