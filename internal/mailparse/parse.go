package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset" // 注册常见字符集解码器
	"github.com/emersion/go-message/mail"
)

// Address 表示一个邮件地址（地址 + 显示名）。
type Address struct {
	Address string
	Name    string
}

// Attachment 表示解析出的一个附件。
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// ParsedEmail 是原始 RFC 822 报文解析后的结构化结果。
// 所有可选字段（subject/text/html/replyTo）缺失时为零值。
type ParsedEmail struct {
	Subject     string
	Text        string
	HTML        string
	From        Address
	To          []Address
	Cc          []Address
	ReplyTo     *string
	Attachments []*Attachment
	RawSize     int64
}

// Parse 解析原始报文，提取主题、正文、收发件人与附件。
func Parse(raw []byte) (*ParsedEmail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedEmail{RawSize: int64(len(raw))}

	header := mr.Header
	if subject, err := header.Subject(); err == nil {
		parsed.Subject = subject
	}
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From = Address{Address: from[0].Address, Name: from[0].Name}
	}
	parsed.To = toAddresses(header, "To")
	parsed.Cc = toAddresses(header, "Cc")
	if replyTo, err := header.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		addr := replyTo[0].Address
		parsed.ReplyTo = &addr
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 单个损坏的 part 不应让整封邮件解析失败
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, err := h.ContentType()
			if err != nil {
				contentType = "text/plain"
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/html"):
				appendBody(&parsed.HTML, string(body))
			case strings.HasPrefix(contentType, "text/"):
				appendBody(&parsed.Text, string(body))
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, err := h.ContentType()
			if err != nil {
				contentType = ""
			}
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			parsed.Attachments = append(parsed.Attachments, &Attachment{
				Filename: filename,
				MimeType: contentType,
				Content:  content,
			})
		}
	}

	return parsed, nil
}

func toAddresses(header mail.Header, key string) []Address {
	list, err := header.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}
	addresses := make([]Address, 0, len(list))
	for _, a := range list {
		addresses = append(addresses, Address{Address: a.Address, Name: a.Name})
	}
	return addresses
}

func appendBody(dst *string, body string) {
	if *dst == "" {
		*dst = body
		return
	}
	*dst += "\n" + body
}
