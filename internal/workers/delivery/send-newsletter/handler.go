package sendnewsletter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	awsclient "newsletter-agent/internal/common/aws"
	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/metrics"
	"newsletter-agent/internal/common/validation"
	"newsletter-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "send-newsletter"

type Handler struct {
	config *Config
	mailer Mailer
	logger logger.Logger
}

// NewHandler builds the mailer for the configured provider.
func NewHandler(ctx context.Context, config *Config, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var mailer Mailer
	switch config.Provider {
	case ProviderSES:
		client, err := awsclient.NewSESClient(ctx, config.Region)
		if err != nil {
			return nil, err
		}
		mailer = NewSESMailer(client)
	default:
		mailer = NewSMTPMailer(config)
	}
	return NewHandlerWithMailer(config, mailer, log), nil
}

func NewHandlerWithMailer(config *Config, mailer Mailer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		mailer: mailer,
		logger: log.With(map[string]interface{}{"taskType": TaskType, "provider": mailer.Name()}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidParametersError(TaskType, []string{err.Error()}), started, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute mails a generated draft to its recipient.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Send delivers an arbitrary message, such as a welcome mail, through the
// same transport.
func (h *Handler) Send(ctx context.Context, to, subject, htmlBody, textBody string) (*models.Delivery, error) {
	msg := &Message{
		From:     h.from(),
		To:       strings.TrimSpace(to),
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
	if problems := check(msg); len(problems) > 0 {
		return nil, apperrors.NewInvalidParametersError(TaskType, problems)
	}
	return h.deliver(ctx, msg)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	d := input.Draft
	delivery, err := h.Send(ctx, d.UserEmail, d.Subject, d.HTMLBody, d.TextBody)
	if err != nil {
		return nil, err
	}
	return &Output{Delivery: *delivery}, nil
}

func (h *Handler) deliver(ctx context.Context, msg *Message) (*models.Delivery, error) {
	id, err := h.mailer.Send(ctx, msg)
	if err != nil {
		metrics.Deliveries.WithLabelValues(h.mailer.Name(), "failed").Inc()
		return nil, apperrors.NewDeliveryFailedError(h.mailer.Name(), err)
	}
	metrics.Deliveries.WithLabelValues(h.mailer.Name(), "sent").Inc()

	h.logger.Info("newsletter delivered", map[string]interface{}{
		"to":        msg.To,
		"messageId": id,
	})
	return &models.Delivery{
		MessageID: id,
		Provider:  h.mailer.Name(),
		Recipient: msg.To,
		Subject:   msg.Subject,
		SentAt:    time.Now().UTC(),
	}, nil
}

func (h *Handler) from() string {
	if h.config.FromName == "" {
		return h.config.FromEmail
	}
	return (&mail.Address{Name: h.config.FromName, Address: h.config.FromEmail}).String()
}

func check(msg *Message) []string {
	var problems []string
	if !validation.ValidateEmail(msg.To) {
		problems = append(problems, fmt.Sprintf("invalid recipient %q", msg.To))
	}
	if strings.TrimSpace(msg.Subject) == "" {
		problems = append(problems, "subject is required")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		problems = append(problems, "subject must be a single line")
	}
	if msg.HTMLBody == "" && msg.TextBody == "" {
		problems = append(problems, "a html or text body is required")
	}
	return problems
}
