// File: internal/notification/service.go
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/firebase"
	"marketplace_backend/internal/host"
)

// Service delivers email and push notifications. Callers treat it as fire
// and forget: a returned error is for their log line, never for the request.
type Service interface {
	SendEmail(ctx context.Context, templateName, recipient, language string, vars map[string]string) error
	SendPush(ctx context.Context, hostID uuid.UUID, templateName, language string, vars map[string]string) error
}

// ServiceImplementation implements Service over SMTP and FCM.
type ServiceImplementation struct {
	dialer *gomail.Dialer
	from   string
	fb     *firebase.Service
	hosts  host.Repository
	logger *zap.Logger
}

// NewService creates a new notification service.
func NewService(cfg *config.Config, fb *firebase.Service, hosts host.Repository, logger *zap.Logger) *ServiceImplementation {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return &ServiceImplementation{
		dialer: dialer,
		from:   cfg.SMTPFrom,
		fb:     fb,
		hosts:  hosts,
		logger: logger.Named("notifications"),
	}
}

var _ Service = (*ServiceImplementation)(nil)

// SendEmail renders the template and delivers it over SMTP.
func (s *ServiceImplementation) SendEmail(ctx context.Context, templateName, recipient, language string, vars map[string]string) error {
	subject, body, ok := render(templateName, language, vars)
	if !ok {
		return fmt.Errorf("unknown notification template %q", templateName)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("Email delivery failed",
			zap.String("template", templateName),
			zap.String("recipient", recipient),
			zap.Error(err))
		return err
	}

	s.logger.Debug("Email sent",
		zap.String("template", templateName),
		zap.String("recipient", recipient))
	return nil
}

// SendPush renders the template and delivers it to each of the host's
// registered device tokens via FCM.
func (s *ServiceImplementation) SendPush(ctx context.Context, hostID uuid.UUID, templateName, language string, vars map[string]string) error {
	subject, body, ok := render(templateName, language, vars)
	if !ok {
		return fmt.Errorf("unknown notification template %q", templateName)
	}

	h, err := s.hosts.FindByID(ctx, hostID)
	if err != nil {
		s.logger.Warn("Push skipped, host lookup failed",
			zap.String("host_id", hostID.String()),
			zap.Error(err))
		return err
	}
	if len(h.DeviceTokens) == 0 {
		s.logger.Debug("Push skipped, host has no device tokens",
			zap.String("host_id", hostID.String()))
		return nil
	}

	data := map[string]string{"template": templateName}
	if err := s.fb.SendToDeviceTokens(ctx, h.DeviceTokens, subject, body, data); err != nil {
		s.logger.Warn("Push delivery failed",
			zap.String("template", templateName),
			zap.String("host_id", hostID.String()),
			zap.Error(err))
		return err
	}
	return nil
}
