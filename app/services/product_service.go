package services

import (
	"fmt"
	"strings"

	"StockLedger/app/logger"
	"StockLedger/app/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductService owns product records and is the only component that changes
// stock. Every quantity mutation runs under the product's mutex inside one
// transaction together with its ledger entry.
type ProductService struct {
	*BaseService
	ledger *LedgerService
	events EventPublisher
}

// NewProductService creates a new product service
func NewProductService(ledger *LedgerService) *ProductService {
	return &ProductService{
		BaseService: NewBaseService(),
		ledger:      ledger,
	}
}

// SetEventPublisher attaches the live event feed
func (s *ProductService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// CreateProduct creates a product and records its initial stock in the ledger.
func (s *ProductService) CreateProduct(product *models.Product, actor models.Actor) (*models.Product, error) {
	if product == nil || strings.TrimSpace(product.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if product.Price.IsNegative() {
		return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if product.DistributorPrice.IsNegative() {
		return nil, &ValidationError{Field: "distributor_price", Reason: "must not be negative"}
	}
	if product.Quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	err := s.WithTransaction(func(tx *gorm.DB) error {
		product.IsActive = true
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		return s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:          models.EntryProductAdded,
			ProductID:     product.ID,
			ProductName:   product.Name,
			QuantityDelta: product.Quantity,
			UnitPrice:     product.Price,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Notes:         "initial stock",
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("product created",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("quantity", product.Quantity))
	publish(s.events, EventProductChanged, product)
	return product, nil
}

// UpdateProduct applies a patch and records a product_updated entry listing
// the changed fields. A patch that changes nothing writes no ledger entry:
// cosmetic no-op updates must not pollute the trail.
func (s *ProductService) UpdateProduct(id uint, patch models.ProductPatch, actor models.Actor) (*models.Product, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if patch.DistributorPrice != nil && patch.DistributorPrice.IsNegative() {
		return nil, &ValidationError{Field: "distributor_price", Reason: "must not be negative"}
	}

	var product models.Product
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "product", ID: id}
			}
			return err
		}

		var changes []string
		if patch.Name != nil && *patch.Name != product.Name {
			changes = append(changes, fmt.Sprintf("name: %q -> %q", product.Name, *patch.Name))
			product.Name = *patch.Name
		}
		if patch.Category != nil && *patch.Category != product.Category {
			changes = append(changes, fmt.Sprintf("category: %q -> %q", product.Category, *patch.Category))
			product.Category = *patch.Category
		}
		if patch.Price != nil && !patch.Price.Equal(product.Price) {
			changes = append(changes, fmt.Sprintf("price: %s -> %s", product.Price.StringFixed(2), patch.Price.StringFixed(2)))
			product.Price = *patch.Price
		}
		if patch.DistributorPrice != nil && !patch.DistributorPrice.Equal(product.DistributorPrice) {
			changes = append(changes, fmt.Sprintf("distributor price: %s -> %s",
				product.DistributorPrice.StringFixed(2), patch.DistributorPrice.StringFixed(2)))
			product.DistributorPrice = *patch.DistributorPrice
		}
		if patch.ImageURL != nil && *patch.ImageURL != product.ImageURL {
			changes = append(changes, "image updated")
			product.ImageURL = *patch.ImageURL
		}

		if len(changes) == 0 {
			return nil
		}

		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		return s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:        models.EntryProductUpdated,
			ProductID:   product.ID,
			ProductName: product.Name,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Notes:       strings.Join(changes, "; "),
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, EventProductChanged, &product)
	return &product, nil
}

// DeleteProduct soft deletes a product and records the deletion. Products
// with an open hold cannot be deleted; release or convert the hold first.
func (s *ProductService) DeleteProduct(id uint, actor models.Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}

	err := s.WithTransaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "product", ID: id}
			}
			return err
		}

		var held int64
		if err := tx.Model(&models.Reservation{}).
			Where("product_id = ? AND status = ?", id, models.ReservationHeld).
			Count(&held).Error; err != nil {
			return err
		}
		if held > 0 {
			return &InvalidStateError{Entity: "product", ID: id, Current: "reserved", Expected: "no open holds"}
		}

		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return err
		}
		return s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:        models.EntryProductDeleted,
			ProductID:   product.ID,
			ProductName: product.Name,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			Notes:       fmt.Sprintf("deleted with %d units on hand", product.Quantity),
		})
	})
	if err != nil {
		return err
	}

	logger.Log.Info("product deleted", zap.Uint("product_id", id))
	publish(s.events, EventProductChanged, map[string]uint{"deleted_id": id})
	return nil
}

// GetProduct gets a single product by ID
func (s *ProductService) GetProduct(id uint) (*models.Product, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var product models.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "product", ID: id}
		}
		return nil, err
	}
	return &product, nil
}

// GetAllProducts gets all active products
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var products []models.Product
	err := s.db.Where("is_active = ?", true).
		Order("category, name").
		Find(&products).Error
	return products, err
}

// SearchProducts searches products by name or category
func (s *ProductService) SearchProducts(query string) ([]models.Product, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var products []models.Product
	like := "%" + query + "%"
	err := s.db.Where("(name LIKE ? OR category LIKE ?) AND is_active = ?", like, like, true).
		Order("name").
		Find(&products).Error
	return products, err
}

// GetLowStockProducts gets products at or below the given threshold
func (s *ProductService) GetLowStockProducts(threshold int) ([]models.Product, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var products []models.Product
	err := s.db.Where("quantity <= ? AND is_active = ?", threshold, true).
		Order("quantity ASC").
		Find(&products).Error
	return products, err
}

// AdjustQuantity applies a manual stock adjustment. It is the only sanctioned
// way any component changes stock: current quantity is read under the product
// lock, the result is rejected if it would go negative, and the new quantity
// commits together with its inventory_adjustment entry.
func (s *ProductService) AdjustQuantity(productID uint, delta int, reason string, actor models.Actor) (*models.Product, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, &ValidationError{Field: "delta", Reason: "must not be zero"}
	}

	unlock := lockProduct(productID)
	defer unlock()

	var product *models.Product
	err := s.WithTransaction(func(tx *gorm.DB) error {
		var err error
		product, err = s.adjustQuantityTx(tx, productID, delta)
		if err != nil {
			return err
		}
		return s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:          models.EntryInventoryAdjustment,
			ProductID:     product.ID,
			ProductName:   product.Name,
			QuantityDelta: delta,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Notes:         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("stock adjusted",
		zap.Uint("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("quantity", product.Quantity))
	publish(s.events, EventStockChanged, product)
	return product, nil
}

// adjustQuantityTx changes a product's quantity inside the caller's
// transaction. The caller holds the product lock and appends the matching
// ledger entry in the same transaction. The row is locked for update so the
// read-validate-write sequence is serializable even on stores where the
// process-level mutex is not the only writer.
func (s *ProductService) adjustQuantityTx(tx *gorm.DB, productID uint, delta int) (*models.Product, error) {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "product", ID: productID}
		}
		return nil, err
	}

	if product.Quantity+delta < 0 {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: product.Quantity,
		}
	}

	product.Quantity += delta
	if err := tx.Save(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// InventorySummary holds aggregated inventory statistics
type InventorySummary struct {
	TotalProducts int             `json:"total_products"`
	LowStock      int             `json:"low_stock"`
	OutOfStock    int             `json:"out_of_stock"`
	TotalValue    decimal.Decimal `json:"total_value"` // at distributor cost, falling back to price
}

// GetInventorySummary returns aggregated inventory statistics using SQL
func (s *ProductService) GetInventorySummary(lowStockThreshold int) (*InventorySummary, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	var result struct {
		TotalProducts int
		LowStock      int
		OutOfStock    int
		TotalValue    decimal.Decimal
	}

	err := s.db.Model(&models.Product{}).
		Select(`
			COUNT(*) as total_products,
			COUNT(CASE WHEN quantity > 0 AND quantity <= ? THEN 1 END) as low_stock,
			COUNT(CASE WHEN quantity <= 0 THEN 1 END) as out_of_stock,
			COALESCE(SUM(quantity * CASE WHEN distributor_price > 0 THEN distributor_price ELSE price END), 0) as total_value
		`, lowStockThreshold).
		Where("is_active = ?", true).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	return &InventorySummary{
		TotalProducts: result.TotalProducts,
		LowStock:      result.LowStock,
		OutOfStock:    result.OutOfStock,
		TotalValue:    result.TotalValue,
	}, nil
}

func validateActor(actor models.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return &ValidationError{Field: "actor", Reason: "required"}
	}
	return nil
}
