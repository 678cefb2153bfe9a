package datapush

import (
	"DeliveryDashboard/src/config"
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Attachment 内存中的附件
type Attachment struct {
	Filename string
	Content  []byte
}

// Mailer 通过 SMTP(TLS) 发送报表邮件
type Mailer struct {
	server   string
	username string
	password string
	subject  string
	to       []string

	send func(e *email.Email) error
}

// NewMailer 根据 send_email 配置创建发件器
func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		server:   cfg.SendEmail.Server,
		username: cfg.SendEmail.Username,
		password: cfg.SendEmail.Password,
		subject:  cfg.SendEmail.Subject,
		to:       append([]string(nil), cfg.SendEmail.To...),
	}
	m.send = m.sendWithTLS
	return m
}

// Enabled 配置了服务器和收件人才发送
func (m *Mailer) Enabled() bool {
	return m.server != "" && len(m.to) > 0
}

// Send 发送正文和附件
func (m *Mailer) Send(text string, attachments ...Attachment) error {
	e, err := m.message(text, attachments...)
	if err != nil {
		return err
	}
	if err := m.send(e); err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, m.server)
	}
	return nil
}

func (m *Mailer) message(text string, attachments ...Attachment) (*email.Email, error) {
	e := email.NewEmail()
	e.From = fmt.Sprintf("Delivery Dashboard <%s>", m.username)
	e.To = m.to
	e.Subject = m.subject
	e.Text = []byte(text)

	for _, a := range attachments {
		if _, err := e.Attach(bytes.NewReader(a.Content), a.Filename, xlsxContentType); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

func (m *Mailer) sendWithTLS(e *email.Email) error {
	// 确保服务器地址包含端口
	smtpAddr := m.server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	// 发送邮件（显式 TLS）
	return e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", m.username, m.password, host),
		&tls.Config{ServerName: host},
	)
}
