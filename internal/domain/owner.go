package domain

import (
	"time"
)

// Owner 表示收件箱属主的业务实体。
//
// 属主在首次交互时自动建档（get-or-create），不走注册流程。
type Owner struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	PinHash    string    `json:"-" gorm:"type:varchar(100)"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// HasPin 属主是否已设置收件箱 PIN
func (o *Owner) HasPin() bool {
	return o.PinHash != ""
}
