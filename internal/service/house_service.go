package service

import (
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/repository"
)

// HouseService 馆方服务：结算引擎的只读协作方，唯一的写路径是
// Pix 收款目的地维护。
type HouseService struct {
	houseRepo   repository.HouseRepository
	attemptRepo repository.AttemptRepository
}

// NewHouseService 创建馆方服务
func NewHouseService(houseRepo repository.HouseRepository, attemptRepo repository.AttemptRepository) *HouseService {
	return &HouseService{
		houseRepo:   houseRepo,
		attemptRepo: attemptRepo,
	}
}

// GetByID 按ID获取馆方
func (s *HouseService) GetByID(id uint) (*models.House, error) {
	house, err := s.houseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, ErrHouseNotFound
	}
	return house, nil
}

// List 分页查询馆方
func (s *HouseService) List(filter repository.HouseListFilter) ([]models.House, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.houseRepo.List(filter)
}

// CreateHouseInput 创建馆方输入
type CreateHouseInput struct {
	Name           string
	ContactEmail   string
	PixKey         string
	PixKeyType     string
	PixHolderName  string
	HasMPConnected bool
}

// Create 创建馆方档案
func (s *HouseService) Create(input CreateHouseInput) (*models.House, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidHouse
	}
	pixKey := strings.TrimSpace(input.PixKey)
	pixKeyType := normalizePixKeyType(input.PixKeyType)
	if pixKey != "" && pixKeyType == "" {
		return nil, ErrInvalidPayoutDestination
	}

	house := &models.House{
		Name:           name,
		ContactEmail:   strings.TrimSpace(input.ContactEmail),
		HasMPConnected: input.HasMPConnected,
	}
	if pixKey != "" {
		house.PixKey = &pixKey
		house.PixKeyType = &pixKeyType
		if holder := strings.TrimSpace(input.PixHolderName); holder != "" {
			house.PixHolderName = &holder
		}
	}
	if err := s.houseRepo.Create(house); err != nil {
		return nil, err
	}

	logger.Infow("house_created",
		"house_id", house.ID,
		"name", house.Name,
		"destination_known", house.PayoutDestinationKnown(),
	)
	return house, nil
}

// UpdatePayoutInput 更新收款目的地输入
type UpdatePayoutInput struct {
	PixKey        string
	PixKeyType    string
	PixHolderName string
}

// UpdatePayout 更新馆方 Pix 收款目的地。
// 馆方存在待对账的转账时拒绝修改，避免对账结论指向过期目的地。
func (s *HouseService) UpdatePayout(id uint, input UpdatePayoutInput) (*models.House, error) {
	house, err := s.houseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, ErrHouseNotFound
	}

	unresolved, err := s.attemptRepo.HasUnresolvedForHouse(id)
	if err != nil {
		return nil, err
	}
	if unresolved {
		return nil, ErrPayoutLocked
	}

	pixKey := strings.TrimSpace(input.PixKey)
	pixKeyType := normalizePixKeyType(input.PixKeyType)
	pixHolderName := strings.TrimSpace(input.PixHolderName)
	if pixKey != "" && pixKeyType == "" {
		return nil, ErrInvalidPayoutDestination
	}

	var keyPtr, typePtr, holderPtr *string
	if pixKey != "" {
		keyPtr = &pixKey
		typePtr = &pixKeyType
		if pixHolderName != "" {
			holderPtr = &pixHolderName
		}
	}
	if err := s.houseRepo.UpdatePayout(id, keyPtr, typePtr, holderPtr, time.Now()); err != nil {
		return nil, err
	}

	logger.Infow("house_payout_updated",
		"house_id", id,
		"destination_known", pixKey != "",
	)
	return s.houseRepo.GetByID(id)
}

func normalizePixKeyType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case constants.PixKeyTypeCPF:
		return constants.PixKeyTypeCPF
	case constants.PixKeyTypeCNPJ:
		return constants.PixKeyTypeCNPJ
	case constants.PixKeyTypeEmail:
		return constants.PixKeyTypeEmail
	case constants.PixKeyTypePhone:
		return constants.PixKeyTypePhone
	case constants.PixKeyTypeRandom:
		return constants.PixKeyTypeRandom
	default:
		return ""
	}
}
