// Package newsletter ties subscribers to the generation pipeline, delivery,
// the run log and the archive.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"newsletter-agent/internal/common/config"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/topics"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/pipeline"
	"newsletter-agent/internal/repository"

	"golang.org/x/sync/errgroup"
)

// StageDelivering marks runs that generated a draft but could not mail it.
const StageDelivering = "Delivering"

// AnonymousEmail addresses drafts generated without a subscriber.
const AnonymousEmail = "anonymous@newsletter-agent.local"

type UserRepository interface {
	Upsert(ctx context.Context, u *models.User) (bool, error)
	Get(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, activeOnly bool) ([]models.User, error)
	DueAt(ctx context.Context, hhmm string) ([]models.User, error)
	Deactivate(ctx context.Context, email string) error
	Counts(ctx context.Context) (total, active int, err error)
	PopularTopics(ctx context.Context, limit int) ([]models.TopicCount, error)
}

type LogRepository interface {
	Log(ctx context.Context, entry *models.NewsletterLog) error
	ListForUser(ctx context.Context, email string, limit int) ([]models.NewsletterLog, error)
	CountByStatus(ctx context.Context, now time.Time) (map[string]int, error)
}

type Archiver interface {
	Index(ctx context.Context, draft *models.NewsletterDraft) error
	Search(ctx context.Context, text, email string, size int) ([]repository.SearchHit, error)
}

type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)
}

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) (*models.Delivery, error)
}

type Config struct {
	AppName       string
	BatchSize     int
	DefaultTopics []string
	PopularTopics int
	HistoryLimit  int
}

func LoadConfig(cfg *config.Config) Config {
	return Config{
		AppName:       cfg.App.Name,
		BatchSize:     cfg.Scheduler.BatchSize,
		DefaultTopics: cfg.Pipeline.DefaultTopics,
		PopularTopics: 5,
		HistoryLimit:  20,
	}
}

type Service struct {
	config    Config
	users     UserRepository
	logs      LogRepository
	archive   Archiver
	generator Generator
	sender    Sender
	logger    logger.Logger
	now       func() time.Time
}

// NewService wires the collaborators. archive may be nil.
func NewService(cfg Config, users UserRepository, logs LogRepository, archive Archiver, generator Generator, sender Sender, log logger.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.PopularTopics <= 0 {
		cfg.PopularTopics = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.AppName == "" {
		cfg.AppName = "AI Newsletter"
	}
	return &Service{
		config:    cfg,
		users:     users,
		logs:      logs,
		archive:   archive,
		generator: generator,
		sender:    sender,
		logger:    log.With(map[string]interface{}{"component": "newsletter"}),
		now:       time.Now,
	}
}

// Register creates or refreshes a subscriber. New subscribers get a welcome
// mail; a failed welcome mail does not fail the registration.
func (s *Service) Register(ctx context.Context, u *models.User) (bool, error) {
	u.Topics = topics.Normalize(u.Topics)
	if u.OutputFormat == "" {
		u.OutputFormat = models.FormatHTML
	}
	if u.DeliveryTime == "" {
		u.DeliveryTime = "09:00"
	}
	if u.NewsSources == nil {
		u.NewsSources = []string{}
	}

	created, err := s.users.Upsert(ctx, u)
	if err != nil {
		return false, err
	}

	if created {
		subject, htmlBody, textBody := s.welcome(u)
		if _, err := s.sender.Send(ctx, u.Email, subject, htmlBody, textBody); err != nil {
			s.logger.Warn("welcome email not sent", map[string]interface{}{"email": u.Email, "error": err.Error()})
		}
	}
	s.logger.Info("subscriber registered", map[string]interface{}{"email": u.Email, "created": created})
	return created, nil
}

func (s *Service) welcome(u *models.User) (subject, htmlBody, textBody string) {
	name := u.DisplayName()
	list := strings.Join(u.Topics, ", ")
	subject = fmt.Sprintf("Welcome to %s!", s.config.AppName)
	textBody = fmt.Sprintf("Hi %s,\n\nThanks for subscribing to %s.\nTopics: %s\nDelivery time: %s\n",
		name, s.config.AppName, list, u.DeliveryTime)
	htmlBody = fmt.Sprintf("<h2>Hi %s,</h2><p>Thanks for subscribing to %s.</p><p><strong>Topics:</strong> %s<br><strong>Delivery time:</strong> %s</p>",
		html.EscapeString(name), html.EscapeString(s.config.AppName), html.EscapeString(list), html.EscapeString(u.DeliveryTime))
	return subject, htmlBody, textBody
}

func (s *Service) Users(ctx context.Context, activeOnly bool) ([]models.User, error) {
	return s.users.List(ctx, activeOnly)
}

func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	return s.users.Deactivate(ctx, email)
}

// GenerateRequest overrides the subscriber's stored preferences. NewsSource
// is a single-source shorthand for Sources ("auto" or a source name).
type GenerateRequest struct {
	Email      string   `json:"user_email,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	NewsSource string   `json:"news_source,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// Generate produces a draft without sending it. Stored preferences apply when
// req.Email belongs to a subscriber; otherwise the request and the configured
// defaults drive the run.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*pipeline.Run, error) {
	user, err := s.lookup(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	run, err := s.generate(ctx, user, req)
	status := models.StatusGenerated
	if err != nil {
		status = models.StatusFailed
	}
	s.record(ctx, run, status, nil)
	return run, err
}

func (s *Service) lookup(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return &models.User{Email: AnonymousEmail}, nil
	}
	user, err := s.users.Get(ctx, email)
	if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
		s.logger.Debug("generating for unregistered address", map[string]interface{}{"email": email})
		return &models.User{Email: email}, nil
	}
	return user, err
}

// Deliver generates and mails a newsletter to one subscriber.
func (s *Service) Deliver(ctx context.Context, req GenerateRequest) (*pipeline.Run, *models.Delivery, error) {
	user, err := s.users.Get(ctx, req.Email)
	if err != nil {
		return nil, nil, err
	}
	return s.deliver(ctx, user, req)
}

func (s *Service) deliver(ctx context.Context, user *models.User, req GenerateRequest) (*pipeline.Run, *models.Delivery, error) {
	run, err := s.generate(ctx, user, req)
	if err != nil {
		s.record(ctx, run, models.StatusFailed, nil)
		return run, nil, err
	}

	d := run.Draft
	delivery, err := s.sender.Send(ctx, d.UserEmail, d.Subject, d.HTMLBody, d.TextBody)
	if err != nil {
		s.record(ctx, run, models.StatusFailed, err)
		return run, nil, err
	}
	s.record(ctx, run, models.StatusSent, nil)
	return run, delivery, nil
}

func (s *Service) generate(ctx context.Context, user *models.User, req GenerateRequest) (*pipeline.Run, error) {
	preq := pipeline.Request{
		UserEmail: user.Email,
		UserName:  user.DisplayName(),
		Topics:    req.Topics,
		Sources:   req.Sources,
		Format:    req.Format,
	}
	if len(topics.Normalize(preq.Topics)) == 0 {
		preq.Topics = user.Topics
	}
	if len(topics.Normalize(preq.Topics)) == 0 {
		preq.Topics = s.config.DefaultTopics
	}
	if len(preq.Sources) == 0 {
		preq.Sources = user.NewsSources
	}
	if preq.Format == "" {
		preq.Format = user.OutputFormat
	}

	run, err := s.generator.Generate(ctx, preq)
	if err != nil {
		return run, err
	}

	if s.archive != nil {
		if err := s.archive.Index(ctx, run.Draft); err != nil {
			s.logger.Warn("newsletter not archived", map[string]interface{}{"runId": run.ID, "error": err.Error()})
		}
	}
	return run, nil
}

// record writes the run log. Logging failures are reported, never returned.
func (s *Service) record(ctx context.Context, run *pipeline.Run, status string, deliveryErr error) {
	if run == nil {
		return
	}
	entry := &models.NewsletterLog{
		RunID:     run.ID,
		UserEmail: run.UserEmail,
		Topics:    run.Topics,
		Status:    status,
	}
	if run.Draft != nil {
		entry.Subject = run.Draft.Subject
		entry.NewsCount = run.Draft.NewsCount
	}
	switch {
	case run.Err != nil:
		entry.FailedStage = string(run.FailedStage)
		entry.Error = run.Err.Message
	case deliveryErr != nil:
		entry.FailedStage = StageDelivering
		entry.Error = apperrors.AsStandardError(deliveryErr).Describe()
	}
	if status == models.StatusSent {
		sentAt := s.now().UTC()
		entry.SentAt = &sentAt
	}

	if err := s.logs.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("newsletter log not written", map[string]interface{}{"runId": run.ID, "error": err.Error()})
	}
}

// BatchFailure is one subscriber a batch could not serve.
type BatchFailure struct {
	Email string `json:"email"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// BatchReport summarizes a delivery batch.
type BatchReport struct {
	Total    int            `json:"total"`
	Sent     int            `json:"sent"`
	Failed   int            `json:"failed"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// SendToActive delivers to every active subscriber.
func (s *Service) SendToActive(ctx context.Context) (*BatchReport, error) {
	users, err := s.users.List(ctx, true)
	if err != nil {
		return nil, err
	}
	return s.DeliverAll(ctx, users), nil
}

// SendDue delivers to active subscribers whose delivery time is at's HH:MM.
func (s *Service) SendDue(ctx context.Context, at time.Time) (*BatchReport, error) {
	users, err := s.users.DueAt(ctx, at.Format("15:04"))
	if err != nil {
		return nil, err
	}
	return s.DeliverAll(ctx, users), nil
}

// DeliverAll runs one delivery per subscriber with bounded concurrency. One
// subscriber's failure never stops the others.
func (s *Service) DeliverAll(ctx context.Context, users []models.User) *BatchReport {
	report := &BatchReport{Total: len(users)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.config.BatchSize)
	for i := range users {
		user := &users[i]
		g.Go(func() error {
			_, _, err := s.deliver(ctx, user, GenerateRequest{Email: user.Email})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Sent++
				return nil
			}
			report.Failed++
			report.Failures = append(report.Failures, batchFailure(user.Email, err))
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("delivery batch finished", map[string]interface{}{
		"total":  report.Total,
		"sent":   report.Sent,
		"failed": report.Failed,
	})
	return report
}

func batchFailure(email string, err error) BatchFailure {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return BatchFailure{Email: email, Stage: string(se.Stage), Error: se.Message}
	}
	return BatchFailure{Email: email, Stage: StageDelivering, Error: apperrors.AsStandardError(err).Describe()}
}

// SendTest mails a fixed message to check the transport.
func (s *Service) SendTest(ctx context.Context, to string) (*models.Delivery, error) {
	subject := fmt.Sprintf("%s test email", s.config.AppName)
	text := fmt.Sprintf("This is a test email from %s sent at %s.", s.config.AppName, s.now().UTC().Format(time.RFC1123))
	return s.sender.Send(ctx, to, subject, "<p>"+html.EscapeString(text)+"</p>", text)
}

// Stats aggregates subscriber and run counts.
func (s *Service) Stats(ctx context.Context) (*models.NewsletterStats, error) {
	total, active, err := s.users.Counts(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.logs.CountByStatus(ctx, s.now())
	if err != nil {
		return nil, err
	}
	popular, err := s.users.PopularTopics(ctx, s.config.PopularTopics)
	if err != nil {
		return nil, err
	}
	return &models.NewsletterStats{
		TotalUsers:    total,
		ActiveUsers:   active,
		Newsletters:   counts,
		PopularTopics: popular,
	}, nil
}

func (s *Service) History(ctx context.Context, email string) ([]models.NewsletterLog, error) {
	return s.logs.ListForUser(ctx, email, s.config.HistoryLimit)
}

// Search queries the archive. Without an archive it finds nothing.
func (s *Service) Search(ctx context.Context, text, email string, size int) ([]repository.SearchHit, error) {
	if s.archive == nil {
		return []repository.SearchHit{}, nil
	}
	return s.archive.Search(ctx, text, email, size)
}
