package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is one outbound plain-text email.
type Message struct {
	To      string
	ToName  string
	CC      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid delivers messages through the SendGrid v3 API.
type SendGrid struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGrid creates a SendGrid-backed mailer.
func NewSendGrid(apiKey, fromName, fromAddress string, logger *zap.Logger) *SendGrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGrid{
		key:    apiKey,
		from:   sgmail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// Send posts the message to the mail API.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("mail api rejected message",
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body))
		return fmt.Errorf("sending email: status %d", res.StatusCode)
	}
	return nil
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	for _, cc := range msg.CC {
		if cc == "" || cc == msg.To {
			continue
		}
		p.AddCCs(sgmail.NewEmail("", cc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return m
}
