package domain

import "time"

// User 表示系统用户。
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"type:varchar(64);index"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	Admin     bool      `json:"admin" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserNotification 表示用户的一个 Web Push 订阅。
//
// 推送服务返回永久失效（gone）后，通知分发会按 Endpoint 删除该行；
// 删除后本管道不会再恢复它。
type UserNotification struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Endpoint  string     `json:"endpoint" gorm:"type:varchar(512);uniqueIndex;not null"`
	P256dh    string     `json:"p256dh" gorm:"type:text"`
	Auth      string     `json:"auth" gorm:"type:text"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HasKeys 判断订阅是否具备投递所需的全部密钥材料。
// 缺失的订阅会被跳过并记录日志，绝不会被投递。
func (n *UserNotification) HasKeys() bool {
	return n.Endpoint != "" && n.P256dh != "" && n.Auth != ""
}
