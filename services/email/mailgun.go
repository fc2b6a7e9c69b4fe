package emailsvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/trezcool/darasa/core"
)

const mailgunTimeout = 30 * time.Second

type mailgunService struct {
	mg              mailgun.Mailgun
	from            string
	subjPrefix      string
	frontendBaseURL string
	logger          core.Logger
}

var _ core.EmailService = (*mailgunService)(nil)

func NewMailgunService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &mailgunService{
		mg:              mailgun.NewMailgun(conf.Email.MailgunDomain, conf.Email.MailgunAPIKey),
		from:            from.String(),
		subjPrefix:      "[" + conf.AppName + "] ",
		frontendBaseURL: conf.FrontendBaseURL,
		logger:          logger,
	}
}

func (svc mailgunService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.frontendBaseURL); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				svc.send(*msg)
			}
		}()
	}
}

func (svc mailgunService) prepare(msg core.EmailMessage) (*mailgun.Message, error) {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}

	m := svc.mg.NewMessage(svc.from, svc.subjPrefix+msg.Subject, msg.TextContent, to...)
	if msg.HTMLContent != "" {
		m.SetHtml(msg.HTMLContent)
	}
	for _, cc := range msg.Cc {
		m.AddCC(cc.String())
	}
	for _, bcc := range msg.Bcc {
		m.AddBCC(bcc.String())
	}
	for _, at := range msg.Attachments {
		content, err := base64.StdEncoding.DecodeString(at.Content)
		if err != nil {
			return nil, fmt.Errorf("decoding attachment %s: %w", at.Filename, err)
		}
		m.AddBufferAttachment(at.Filename, content)
	}
	return m, nil
}

func (svc mailgunService) send(msg core.EmailMessage) {
	m, err := svc.prepare(msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("preparing email: %v", err), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mailgunTimeout)
	defer cancel()
	if _, _, err = svc.mg.Send(ctx, m); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	}
}
