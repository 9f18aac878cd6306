package domain

import "time"

// Mailbox 表示一个用户邮箱。
//
// StorageUsed 由入站投递管道单调递增，本管道永不回减。
type Mailbox struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"type:varchar(255)"`
	Plan        Plan      `json:"plan" gorm:"type:varchar(20);default:'FREE'"`
	StorageUsed int64     `json:"storageUsed" gorm:"not null;default:0"` // 已用存储（字节）
	CreatedAt   time.Time `json:"createdAt"`
}

// MailboxForUser 表示邮箱与用户的多对多关联。
// 决定某封新邮件的通知应该推送给哪些用户。
type MailboxForUser struct {
	MailboxID string `json:"mailboxId" gorm:"primaryKey;type:varchar(36)"`
	UserID    string `json:"userId" gorm:"primaryKey;type:varchar(36);index"`
}
