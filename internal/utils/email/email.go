package email

import (
	"fmt"
	"net/smtp"

	"github.com/gw2armory/armory-back/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendTokenInvalidated tells a user that the GW2 API rejected one of their keys
func (s *Sender) SendTokenInvalidated(to, alias, accountName string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Your Guild Wars 2 API key stopped working"

	body := fmt.Sprintf("Hi %s,\n\n", alias)
	body += fmt.Sprintf(
		"The Guild Wars 2 API rejected the key you added for %s, so we have stopped syncing it.\n"+
			"If you deleted the key on the ArenaNet account page, add a new one to keep your PvP standings up to date.\n",
		accountName,
	)
	body += "\nCheers,\nGW2 Armory"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
