package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborpay/reconciler/internal/adapter/repository"
	domainRepo "github.com/harborpay/reconciler/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Ledger      domainRepo.LedgerRepository
	Snapshot    domainRepo.SnapshotRepository
	OrderLookup domainRepo.OrderLookup
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Ledger:      repository.NewLedgerRepository(db, logger),
		Snapshot:    repository.NewSnapshotRepository(db, logger),
		OrderLookup: repository.NewOrderLookup(db),
	}
}
