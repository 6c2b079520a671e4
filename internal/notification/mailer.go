package notification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"

	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/metrics"
	"elevator-status-monitor/internal/model"
)

const channelEmail = "email"

// Status emojis used in subjects and bodies.
const (
	emojiBroken  = "⛔"
	emojiWorking = "✅"
	emojiUnknown = "❔"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	statusTextTemplate = template.Must(template.ParseFS(templateFS, "templates/status.txt.tmpl"))
	errorsTextTemplate = template.Must(template.ParseFS(templateFS, "templates/errors.txt.tmpl"))
	statusHTMLTemplate = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/status.html.tmpl"))
)

type templateData struct {
	Equipments []model.Equipment
	Errors     []string
}

// Mailer sends the status report and the error report.
type Mailer struct {
	sender        Sender
	from          string
	statusAddress string
	errorsAddress string
	log           *zap.Logger
}

// NewMailer creates a Mailer delivering through sender.
func NewMailer(cfg config.EmailConfig, sender Sender, log *zap.Logger) *Mailer {
	return &Mailer{
		sender:        sender,
		from:          cfg.From,
		statusAddress: cfg.StatusAddress,
		errorsAddress: cfg.ErrorsAddress,
		log:           log,
	}
}

// StatusSubject builds the status email subject. Elevators without a reported status and
// stations that failed to resolve both count as unknown.
func StatusSubject(equipments []model.Equipment, errorCount int) string {
	broken, working, unknown := model.CountStatus(equipments)
	unknown += errorCount

	var prefix string
	if broken > 0 {
		prefix += emojiBroken
	}
	if working > 0 {
		prefix += emojiWorking
	}
	if unknown > 0 {
		prefix += emojiUnknown
	}

	var message string
	switch {
	case broken == 0 && working > 0 && unknown > 0:
		message = "Kein defekter Aufzug (einige Unbekannt)!"
	case broken == 0 && working == 0:
		message = "Warnung: Aufzugstatus unbekannt!"
	case broken == 0 && unknown == 0:
		message = "Alle Aufzüge funktionieren!"
	default:
		message = "Achtung: Defekter Aufzug auf dem Weg!"
	}
	return prefix + " " + message
}

// ErrorsSubject builds the error report subject.
func ErrorsSubject(errorCount int) string {
	return fmt.Sprintf("%d Errors encountered when checking elevator status", errorCount)
}

// SendStatus mails the full status report to the status address.
func (m *Mailer) SendStatus(ctx context.Context, equipments []model.Equipment, errs []string) error {
	if m.statusAddress == "" {
		return errors.New("email.status_address is not configured")
	}

	data := templateData{Equipments: equipments, Errors: errs}
	email := Email{
		From:    m.from,
		To:      []string{m.statusAddress},
		Subject: StatusSubject(equipments, len(errs)),
		Text:    m.render("status.txt", statusTextTemplate.Execute, data),
		HTML:    m.render("status.html", statusHTMLTemplate.Execute, data),
	}
	if err := m.deliver(ctx, email); err != nil {
		return err
	}
	m.log.Info("status email sent", zap.String("to", m.statusAddress), zap.String("subject", email.Subject))
	return nil
}

// SendErrors mails the error report to the errors address. It does nothing when errs is empty.
func (m *Mailer) SendErrors(ctx context.Context, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	if m.errorsAddress == "" {
		return errors.New("email.errors_address is not configured")
	}

	email := Email{
		From:    m.from,
		To:      []string{m.errorsAddress},
		Subject: ErrorsSubject(len(errs)),
		Text:    m.render("errors.txt", errorsTextTemplate.Execute, templateData{Errors: errs}),
	}
	if err := m.deliver(ctx, email); err != nil {
		return err
	}
	m.log.Info("errors email sent", zap.String("to", m.errorsAddress), zap.Int("errors", len(errs)))
	return nil
}

func (m *Mailer) deliver(ctx context.Context, email Email) error {
	if err := m.sender.Send(ctx, email); err != nil {
		metrics.NotificationsSent.WithLabelValues(channelEmail, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("could not send email %q: %w", email.Subject, err)
	}
	metrics.NotificationsSent.WithLabelValues(channelEmail, metrics.OutcomeSuccess).Inc()
	return nil
}

// render executes a template. A failing template still yields a body naming the error.
func (m *Mailer) render(name string, execute func(w io.Writer, data any) error, data templateData) string {
	var buf bytes.Buffer
	if err := execute(&buf, data); err != nil {
		m.log.Warn("failed to render email template", zap.String("template", name), zap.Error(err))
		return fmt.Sprintf("Error while creating message: %v", err)
	}
	return buf.String()
}
