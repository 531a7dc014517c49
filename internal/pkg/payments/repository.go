package payments

import (
	"errors"

	"github.com/pedidopro/pedidopro/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the order/store reads and the single idempotent
// commit procedure the reconciler needs.
type Repository interface {
	GetOrderByID(id string) (*models.Order, error)
	GetStoreByID(id string) (*models.Store, error)
	CommitVerifiedPayment(payment *models.OrderPayment) error
}

// ErrOrderNotFound and ErrStoreNotFound normalize lookup misses across
// repository implementations.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrStoreNotFound = errors.New("store not found")
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) GetStoreByID(id string) (*models.Store, error) {
	var store models.Store
	err := r.db.Where("id = ?", id).First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// CommitVerifiedPayment records the payment and settles the order in one
// transaction. The OnConflict DoNothing insert against the unique
// (store_id, gateway_payment_id) index makes re-committing the same gateway
// payment a no-op: no duplicate payment row, no second settlement.
func (r *gormRepository) CommitVerifiedPayment(payment *models.OrderPayment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "store_id"},
				{Name: "gateway_payment_id"},
			},
			DoNothing: true,
		}).Create(payment).Error; err != nil {
			return err
		}

		return tx.Model(&models.Order{}).
			Where("id = ? AND payment_status NOT IN ?", payment.OrderID, []string{models.PaymentStatusApproved, models.PaymentStatusPaid}).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusApproved,
				"status":         models.OrderStatusConfirmed,
			}).Error
	})
}
