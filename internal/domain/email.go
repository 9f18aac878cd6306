package domain

import "time"

// 邮件分类，对应 UI 侧边栏。
type EmailCategory string

const (
	CategoryInbox EmailCategory = "inbox"
	CategorySent  EmailCategory = "sent"
	CategoryDraft EmailCategory = "draft"
	CategoryTrash EmailCategory = "trash"
	CategoryTemp  EmailCategory = "temp"
)

// Email 表示一封已接收的邮件。
// 每封被接受的入站邮件恰好创建一行，创建后本管道不再修改其内容。
type Email struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID string        `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	Raw       string        `json:"raw" gorm:"type:varchar(20)"` // 原始报文的存储位置标记，如 "s3"
	Subject   string        `json:"subject" gorm:"type:varchar(500)"`
	Body      string        `json:"body" gorm:"type:text"`
	HTML      string        `json:"html,omitempty" gorm:"type:text"`
	Snippet   string        `json:"snippet" gorm:"type:varchar(255)"`
	ReplyTo   *string       `json:"replyTo,omitempty" gorm:"type:varchar(255)"`
	Size      int64         `json:"size"`
	Category  EmailCategory `json:"category" gorm:"type:varchar(20);index;default:'inbox'"`
	IsRead    bool          `json:"isRead" gorm:"default:false;index"`
	IsStarred bool          `json:"isStarred" gorm:"default:false"`
	CreatedAt time.Time     `json:"createdAt"`

	// 关联数据（按需加载）
	Sender      *EmailSender      `json:"sender,omitempty" gorm:"-"`
	Recipients  []EmailRecipient  `json:"recipients,omitempty" gorm:"-"`
	Attachments []EmailAttachment `json:"attachments,omitempty" gorm:"-"`
}

// EmailRecipient 表示邮件的一个收件人（To 或 Cc）。
type EmailRecipient struct {
	ID      uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	EmailID string `json:"emailId" gorm:"type:varchar(36);index;not null"`
	Address string `json:"address" gorm:"type:varchar(255);not null"`
	Name    string `json:"name,omitempty" gorm:"type:varchar(255)"`
	CC      bool   `json:"cc" gorm:"default:false"`
}

// EmailSender 表示邮件的发件人，每封邮件恰好一行。
type EmailSender struct {
	ID      uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	EmailID string `json:"emailId" gorm:"type:varchar(36);uniqueIndex;not null"`
	Address string `json:"address" gorm:"type:varchar(255);not null"`
	Name    string `json:"name,omitempty" gorm:"type:varchar(255)"`
}

// EmailAttachment 表示邮件附件的元数据。
// 附件内容存放在对象存储，存储键可由 (mailboxId, emailId, id, filename) 推导。
type EmailAttachment struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID  string `json:"emailId" gorm:"type:varchar(36);index;not null"`
	Filename string `json:"filename" gorm:"type:varchar(255)"` // URL 编码后的文件名
	Title    string `json:"title" gorm:"type:varchar(255)"`    // 原始文件名（展示用）
	MimeType string `json:"mimeType" gorm:"type:varchar(100)"`
	Size     int64  `json:"size"`
}
