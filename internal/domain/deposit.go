package domain

import (
	"time"
)

// Deposit 表示一次匿名投递的业务实体。
//
// 文件载荷不直接入库，只保存指向 blob 存储的 FileID 引用；
// Text 在纯文本投递时是正文，在带文件投递时是可选说明。
type Deposit struct {
	ID           int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	TokenID      string       `json:"tokenId" gorm:"type:varchar(8);index;not null"`
	SenderAnonID string       `json:"senderAnonId" gorm:"type:varchar(6)"`
	Text         string       `json:"text,omitempty" gorm:"type:text"`
	FileID       string       `json:"fileId,omitempty" gorm:"type:varchar(36)"`
	FileName     string       `json:"fileName,omitempty" gorm:"type:varchar(255)"`
	FileSize     int64        `json:"fileSize,omitempty"`
	MimeType     string       `json:"mimeType,omitempty" gorm:"type:varchar(100)"`
	FileCategory FileCategory `json:"fileCategory,omitempty" gorm:"type:varchar(16)"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"index"`
	DeletedAt    *time.Time   `json:"deletedAt,omitempty" gorm:"index"`
}

// HasFile 是否携带文件
func (d *Deposit) HasFile() bool {
	return d.FileID != ""
}

// HasText 是否携带文本
func (d *Deposit) HasText() bool {
	return d.Text != ""
}
