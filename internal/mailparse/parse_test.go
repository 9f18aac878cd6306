package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleMail = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Cc: Dave <dave@example.com>\r\n" +
	"Reply-To: noreply@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hi Bob!\r\n"

func TestParse_Simple(t *testing.T) {
	parsed, err := Parse([]byte(simpleMail))
	require.NoError(t, err)

	assert.Equal(t, "Hello", parsed.Subject)
	assert.Equal(t, "alice@example.com", parsed.From.Address)
	assert.Equal(t, "Alice", parsed.From.Name)
	require.Len(t, parsed.To, 2)
	assert.Equal(t, "bob@example.com", parsed.To[0].Address)
	require.Len(t, parsed.Cc, 1)
	require.NotNil(t, parsed.ReplyTo)
	assert.Equal(t, "noreply@example.com", *parsed.ReplyTo)
	assert.Equal(t, "Hi Bob!\r\n", parsed.Text)
	assert.Empty(t, parsed.HTML)
	assert.Empty(t, parsed.Attachments)
	assert.Equal(t, int64(len(simpleMail)), parsed.RawSize)
}

func buildMultipart() string {
	var b strings.Builder
	b.WriteString("From: alice@example.com\r\n")
	b.WriteString("To: bob@example.com\r\n")
	b.WriteString("Subject: report\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=frontier\r\n")
	b.WriteString("\r\n")
	b.WriteString("--frontier\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("plain body\r\n")
	b.WriteString("--frontier\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString("<p>html body</p>\r\n")
	b.WriteString("--frontier\r\n")
	b.WriteString("Content-Type: application/pdf\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"report.pdf\"\r\n\r\n")
	b.WriteString("%PDF-1.4 fake\r\n")
	b.WriteString("--frontier--\r\n")
	return b.String()
}

func TestParse_MultipartWithAttachment(t *testing.T) {
	parsed, err := Parse([]byte(buildMultipart()))
	require.NoError(t, err)

	assert.Contains(t, parsed.Text, "plain body")
	assert.Contains(t, parsed.HTML, "html body")
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "report.pdf", parsed.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", parsed.Attachments[0].MimeType)
	assert.Contains(t, string(parsed.Attachments[0].Content), "PDF")
}

func TestParse_MissingHeaders(t *testing.T) {
	raw := "Content-Type: text/plain\r\n\r\nno headers at all\r\n"
	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Empty(t, parsed.Subject)
	assert.Empty(t, parsed.From.Address)
	assert.Nil(t, parsed.ReplyTo)
	assert.Empty(t, parsed.To)
	assert.Contains(t, parsed.Text, "no headers")
}

func TestParse_Garbage(t *testing.T) {
	// 完全无法解析的输入返回错误而不是 panic
	_, err := Parse([]byte("\x00\x01\x02"))
	assert.Error(t, err)
}
