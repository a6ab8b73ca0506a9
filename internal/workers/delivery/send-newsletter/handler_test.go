package sendnewsletter

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Provider:  ProviderSES,
		FromEmail: "news@example.com",
		FromName:  "Daily Brief",
		Region:    "us-east-1",
		Timeout:   5 * time.Second,
	}
}

type fakeMailer struct {
	sent []*Message
	err  error
}

func (f *fakeMailer) Name() string { return "fake" }

func (f *fakeMailer) Send(_ context.Context, msg *Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func draft() models.NewsletterDraft {
	return models.NewsletterDraft{
		UserEmail: "ada@example.com",
		Subject:   "Your Daily News Summary - technology",
		HTMLBody:  "<p>hi</p>",
		TextBody:  "hi",
		Topics:    []string{"technology"},
		Format:    models.FormatBoth,
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandlerWithMailer(createTestConfig(), mailer, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Draft: draft()})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", out.Delivery.MessageID)
	assert.Equal(t, "fake", out.Delivery.Provider)
	assert.Equal(t, "ada@example.com", out.Delivery.Recipient)
	assert.False(t, out.Delivery.SentAt.IsZero())

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, `"Daily Brief" <news@example.com>`, mailer.sent[0].From)
	assert.Equal(t, "<p>hi</p>", mailer.sent[0].HTMLBody)
}

func TestHandler_Execute_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.NewsletterDraft)
	}{
		{"bad recipient", func(d *models.NewsletterDraft) { d.UserEmail = "nobody" }},
		{"no subject", func(d *models.NewsletterDraft) { d.Subject = "" }},
		{"header injection", func(d *models.NewsletterDraft) { d.Subject = "hi\r\nBcc: x@example.com" }},
		{"no body", func(d *models.NewsletterDraft) { d.HTMLBody, d.TextBody = "", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{}
			h := NewHandlerWithMailer(createTestConfig(), mailer, logger.NewNoOpLogger())
			d := draft()
			tt.mutate(&d)

			_, err := h.Execute(context.Background(), &Input{Draft: d})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidParameters))
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestHandler_Execute_TransportFailure(t *testing.T) {
	cause := errors.New("throttled")
	h := NewHandlerWithMailer(createTestConfig(), &fakeMailer{err: cause}, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{Draft: draft()})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDeliveryFailed))
	assert.True(t, apperrors.IsRetryable(err))
	assert.ErrorIs(t, err, cause)
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := NewSESMailer(client)

	id, err := m.Send(context.Background(), &Message{
		From:     "news@example.com",
		To:       "ada@example.com",
		Subject:  "Hello",
		TextBody: "plain only",
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)

	require.NotNil(t, client.input)
	assert.Equal(t, "news@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(client.input.Message.Subject.Data))
	assert.Nil(t, client.input.Message.Body.Html)
	assert.Equal(t, "plain only", aws.ToString(client.input.Message.Body.Text.Data))
}

func TestBuildMIME_Alternative(t *testing.T) {
	raw, err := buildMIME(&Message{
		From:     "news@example.com",
		To:       "ada@example.com",
		Subject:  "Résumé of the day",
		HTMLBody: "<p>html</p>",
		TextBody: "text",
	}, "<id@example.com>", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Résumé of the day", subject)
	assert.Equal(t, "<id@example.com>", msg.Header.Get("Message-ID"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	var bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, _ := io.ReadAll(part)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"text", "<p>html</p>"}, bodies)
}

func TestBuildMIME_SinglePart(t *testing.T) {
	raw, err := buildMIME(&Message{From: "a@example.com", To: "b@example.com", Subject: "s", HTMLBody: "<b>x</b>"}, "<id>", time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Content-Type: text/html; charset=UTF-8\r\n\r\n<b>x</b>")
}

func TestConfig_Validate(t *testing.T) {
	cfg := createTestConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Provider = ProviderSMTP
	assert.Error(t, cfg.Validate())
	cfg.SMTPHost, cfg.SMTPPort = "smtp.example.com", 587
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "pigeon"
	assert.Error(t, cfg.Validate())
}

func TestSanitizeLocal(t *testing.T) {
	assert.Equal(t, "adalovelac", sanitizeLocal("ada.lovelace+news@example.com"))
	assert.Equal(t, "user", sanitizeLocal("@example.com"))
}
