package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/models"

	"gorm.io/gorm"
)

// HouseRepository 馆方数据访问接口
type HouseRepository interface {
	GetByID(id uint) (*models.House, error)
	List(filter HouseListFilter) ([]models.House, int64, error)
	Create(house *models.House) error
	UpdatePayout(id uint, pixKey, pixKeyType, pixHolderName *string, updatedAt time.Time) error
}

// GormHouseRepository GORM 实现
type GormHouseRepository struct {
	db *gorm.DB
}

// NewHouseRepository 创建馆方仓储
func NewHouseRepository(db *gorm.DB) *GormHouseRepository {
	return &GormHouseRepository{db: db}
}

// GetByID 按ID获取馆方
func (r *GormHouseRepository) GetByID(id uint) (*models.House, error) {
	if id == 0 {
		return nil, nil
	}
	var house models.House
	if err := r.db.First(&house, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &house, nil
}

// List 分页查询馆方列表
func (r *GormHouseRepository) List(filter HouseListFilter) ([]models.House, int64, error) {
	query := r.db.Model(&models.House{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR contact_email LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	houses := make([]models.House, 0)
	err := applyPagination(query, filter.Page, filter.PageSize).
		Order("id ASC").
		Find(&houses).Error
	if err != nil {
		return nil, 0, err
	}
	return houses, total, nil
}

// Create 创建馆方
func (r *GormHouseRepository) Create(house *models.House) error {
	if house == nil {
		return nil
	}
	return r.db.Create(house).Error
}

// UpdatePayout 更新馆方 Pix 收款目的地
func (r *GormHouseRepository) UpdatePayout(id uint, pixKey, pixKeyType, pixHolderName *string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.House{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pix_key":         pixKey,
			"pix_key_type":    pixKeyType,
			"pix_holder_name": pixHolderName,
			"updated_at":      updatedAt,
		}).Error
}
