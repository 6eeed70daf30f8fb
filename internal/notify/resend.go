package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"
)

// ResendSender отправляет письма через API Resend.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender создаёт отправитель с API-ключом и адресом отправителя.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// Subject возвращает тему письма для протокола.
func Subject(protocol string) string {
	return fmt.Sprintf("Comprovante Recebido: Protocolo %s - Rivilog", protocol)
}

// Send отправляет письмо-подтверждение.
func (s *ResendSender) Send(ctx context.Context, n Notification) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{n.To},
		Subject: Subject(n.Protocol),
		Html:    renderBody(n),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func renderBody(n Notification) string {
	return fmt.Sprintf(`<div style="font-family: sans-serif; color: #333;">
  <h2 style="color: #f97316;">Olá, %s!</h2>
  <p>Recebemos o seu comprovante de pedágio.</p>
  <p><strong>Protocolo:</strong> %s</p>
  <p><strong>Placa:</strong> %s</p>
  <p>Guarde este número para acompanhar o reembolso.</p>
  <p style="font-size: 12px; color: #888;">Rivilog Logística</p>
</div>`,
		html.EscapeString(n.DriverName),
		html.EscapeString(n.Protocol),
		html.EscapeString(n.Plate),
	)
}
