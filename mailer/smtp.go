// Package mailer delivers registration emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost = "smtp.yandex.ru"
	DefaultPort = 587

	confirmationSubject = "Регистрация в системе СистемаКонтроля"
)

// ErrNotConfigured is returned when SMTP credentials are missing
var ErrNotConfigured = errors.New("smtp credentials not configured")

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	DialTimeout time.Duration
}

// SMTP sends plain text mail using STARTTLS and PLAIN auth
type SMTP struct {
	config Config
	now    func() time.Time
}

func NewSMTP(cfg Config) *SMTP {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SMTP{config: cfg, now: time.Now}
}

// SendConfirmation mails the verification link to email
func (s *SMTP) SendConfirmation(ctx context.Context, email, link string) error {
	if s.config.Username == "" || s.config.Password == "" {
		return ErrNotConfigured
	}
	return s.Send(ctx, email, confirmationSubject, ConfirmationBody(link))
}

// Send delivers a single message
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	dialer := &net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
	}

	if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}

	if _, err := w.Write(BuildMessage(s.config.From, to, subject, body, s.now())); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	return client.Quit()
}

// ConfirmationBody is the text of the registration email
func ConfirmationBody(link string) string {
	var b strings.Builder
	b.WriteString("Добро пожаловать в систему СистемаКонтроля!\r\n\r\n")
	b.WriteString("Для завершения регистрации перейдите по ссылке:\r\n")
	b.WriteString(link)
	b.WriteString("\r\n\r\n")
	b.WriteString("Если вы не регистрировались в системе, проигнорируйте это письмо.\r\n\r\n")
	b.WriteString("С уважением,\r\nКоманда СистемаКонтроля\r\n")
	return b.String()
}

// BuildMessage renders headers and body, the subject is Q encoded
func BuildMessage(from, to, subject, body string, date time.Time) []byte {
	var msg bytes.Buffer
	header := func(k, v string) {
		msg.WriteString(k + ": " + v + "\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return msg.Bytes()
}
