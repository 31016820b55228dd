package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// House 馆方（礼仪馆）表，结算视角下只读
type House struct {
	ID            uint           `gorm:"primarykey" json:"id"`                          // 主键
	Name          string         `gorm:"type:varchar(255);not null;index" json:"name"`  // 馆方名称
	ContactEmail  string         `gorm:"type:varchar(255)" json:"contact_email"`        // 联系邮箱
	PixKey        *string        `gorm:"type:varchar(255)" json:"pix_key,omitempty"`    // Pix 收款键（可空）
	PixKeyType    *string        `gorm:"type:varchar(32)" json:"pix_key_type,omitempty"` // Pix 键类型（cpf/cnpj/email/phone/random）
	PixHolderName *string        `gorm:"type:varchar(255)" json:"pix_holder_name,omitempty"` // Pix 收款人姓名
	HasMPConnected bool          `gorm:"not null;default:false" json:"has_mp_connected"` // 是否使用处理商原生分账（为真时本引擎不得发起转账）
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                    // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (House) TableName() string {
	return "houses"
}

// PayoutDestinationKnown 是否已配置 Pix 收款目的地
func (h *House) PayoutDestinationKnown() bool {
	return h != nil && h.PixKey != nil && strings.TrimSpace(*h.PixKey) != ""
}
