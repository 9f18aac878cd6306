package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrNotFound 对象未找到错误
var ErrNotFound = errors.New("blob not found")

// Store 定义对象存储接口（字节级 put/get）。
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// RawEmailContentType 原始报文的内容类型
const RawEmailContentType = "message/rfc822"

// EmailKey 返回原始报文的存储键：{mailboxId}/{emailId}/email.eml
func EmailKey(mailboxID, emailID string) string {
	return fmt.Sprintf("%s/%s/email.eml", mailboxID, emailID)
}

// AttachmentKey 返回附件的存储键：
// {mailboxId}/{emailId}/{attachmentId}/{URL 编码后的文件名}。
// 键在 (邮箱, 邮件, 附件) 三元组上唯一。
func AttachmentKey(mailboxID, emailID, attachmentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", mailboxID, emailID, attachmentID, EncodeFilename(filename))
}

// EncodeFilename 对文件名做 URL 编码，与存储键和元数据行保持一致。
func EncodeFilename(name string) string {
	return url.PathEscape(name)
}
