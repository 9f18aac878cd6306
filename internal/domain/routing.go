package domain

import "time"

// DefaultDomain 表示共享域名（系统默认域名）。
// 命中该表说明收件地址需要经过别名表二次解析。
type DefaultDomain struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Domain    string    `json:"domain" gorm:"type:varchar(255);uniqueIndex:idx_default_domain_auth"`
	AuthKey   string    `json:"-" gorm:"type:varchar(255);uniqueIndex:idx_default_domain_auth"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailboxAlias 表示共享域名上的收件地址别名，绑定到唯一邮箱。
type MailboxAlias struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	Alias     string    `json:"alias" gorm:"type:varchar(255);uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	IsDefault bool      `json:"isDefault" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailboxCustomDomain 表示邮箱独占的自定义域名。
// 命中该表直接得到目标邮箱，无需别名解析。
type MailboxCustomDomain struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	Domain    string    `json:"domain" gorm:"type:varchar(255);uniqueIndex:idx_custom_domain_auth"`
	AuthKey   string    `json:"-" gorm:"type:varchar(255);uniqueIndex:idx_custom_domain_auth"`
	CreatedAt time.Time `json:"createdAt"`
}
