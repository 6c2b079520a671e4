package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"elevator-status-monitor/config"
)

// Transport names accepted in email.transport.
const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
)

// Email is a message ready for delivery. HTML is optional.
type Email struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender builds the Sender selected by cfg.Transport.
func NewSender(ctx context.Context, cfg config.EmailConfig, log *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Transport) {
	case "", TransportSMTP:
		if cfg.SMTP.Server == "" {
			return nil, fmt.Errorf("email.smtp.server is not configured")
		}
		return NewSMTPSender(cfg.SMTP, log), nil
	case TransportSES:
		return NewSESSender(ctx, cfg.SES.Region)
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
	}
}

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	log      *zap.Logger

	sendTLS   func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error
	sendPlain func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(cfg config.SMTPConfig, log *zap.Logger) *SMTPSender {
	s := &SMTPSender{
		host:      cfg.Server,
		port:      cfg.Port,
		username:  cfg.User,
		password:  cfg.Password,
		log:       log,
		sendPlain: smtp.SendMail,
	}
	s.sendTLS = s.sendWithTLS
	return s
}

// connectError marks a failure to establish the implicit TLS session. Nothing has been
// transmitted yet, so plain SMTP may be tried instead.
type connectError struct {
	err error
}

func (e *connectError) Error() string { return "tls connect: " + e.err.Error() }

func (e *connectError) Unwrap() error { return e.err }

// Send tries an implicit TLS connection first and falls back to plain SMTP with STARTTLS
// when that connection cannot be established.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	msg, err := buildMessage(email, time.Now())
	if err != nil {
		return err
	}
	from, err := mail.ParseAddress(email.From)
	if err != nil {
		return fmt.Errorf("invalid from address %q: %w", email.From, err)
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	err = s.sendTLS(ctx, addr, auth, from.Address, email.To, msg)
	var connErr *connectError
	if errors.As(err, &connErr) {
		s.log.Warn("TLS connection failed, falling back to plain SMTP", zap.String("addr", addr), zap.Error(err))
		err = s.sendPlain(addr, auth, from.Address, email.To, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) sendWithTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &connectError{err: err}
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return &connectError{err: err}
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	// The relay has accepted the message at this point.
	if err := client.Quit(); err != nil {
		s.log.Warn("SMTP QUIT failed after the message was accepted", zap.String("addr", addr), zap.Error(err))
	}
	return nil
}

// buildMessage renders an RFC 5322 message. With an HTML body the message is
// multipart/alternative, plain text first.
func buildMessage(email Email, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := textproto.MIMEHeader{}
	header.Set("From", email.From)
	header.Set("To", strings.Join(email.To, ", "))
	header.Set("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	header.Set("Date", now.Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@elstatus>", uuid.NewString()))
	header.Set("MIME-Version", "1.0")

	if email.HTML == "" {
		header.Set("Content-Type", `text/plain; charset="utf-8"`)
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		writeHeader(&buf, header)
		if err := writeQuotedPrintable(&buf, email.Text); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{`text/plain; charset="utf-8"`, email.Text},
		{`text/html; charset="utf-8"`, email.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQuotedPrintable(w, part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	writeHeader(&buf, header)
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"} {
		if v := header.Get(key); v != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, v)
		}
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}
	return qp.Close()
}

// SESAPI is the subset of the SES client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers mail through Amazon SES.
type SESSender struct {
	client SESAPI
}

// NewSESSender loads the default AWS configuration for region.
func NewSESSender(ctx context.Context, region string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{client: ses.NewFromConfig(cfg)}, nil
}

func (s *SESSender) Send(ctx context.Context, email Email) error {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")},
	}
	if email.HTML != "" {
		body.Html = &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")}
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: email.To},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(email.From),
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
