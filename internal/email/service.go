package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/config"
)

// Service sends transactional email through Resend. Without an API key it
// logs and skips every send.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	templates    *template.Template
	logger       zerolog.Logger
}

// AccountDeletedData holds data for the account deletion notice.
type AccountDeletedData struct {
	Name        string
	CurrentYear int
}

var defaultTemplates = template.Must(template.New("account_deleted.html").Parse(`<!doctype html>
<html><body>
<p>Hola {{.Name}},</p>
<p>Tu cuenta de RunGoMX fue eliminada y tus datos personales fueron anonimizados.</p>
<p>Your RunGoMX account was deleted and your personal data has been anonymized.</p>
<p>&copy; {{.CurrentYear}} RunGoMX</p>
</body></html>`))

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	svc := &Service{
		config:    cfg,
		templates: defaultTemplates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.ResendAPIKey == "" {
		return svc, nil
	}
	if err := validateEmailAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender email in config: %w", err)
	}
	svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	return svc, nil
}

// Enabled reports whether sends reach Resend.
func (s *Service) Enabled() bool {
	return s.resendClient != nil
}

// SendAccountDeleted notifies to that their account was deleted.
func (s *Service) SendAccountDeleted(ctx context.Context, to, name string) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.Enabled() {
		s.logger.Info().Msg("email service disabled, skipping account deletion notice")
		return nil
	}

	htmlBody, err := s.renderTemplate("account_deleted.html", AccountDeletedData{
		Name:        name,
		CurrentYear: time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render account deletion template: %w", err)
	}

	if err := s.sendViaResend(ctx, to, "Tu cuenta de RunGoMX fue eliminada", htmlBody); err != nil {
		return fmt.Errorf("failed to send account deletion email: %w", err)
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// validateEmailAddress validates an email address for format and header injection attempts
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
