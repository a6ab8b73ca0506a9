package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Alerter is told about every failed run.
type Alerter interface {
	Alert(ctx context.Context, run *Run) error
}

// SNSPublisher is the slice of the SNS client the alerter uses.
type SNSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAlerter publishes a JSON failure notice to an SNS topic.
type SNSAlerter struct {
	client   SNSPublisher
	topicARN string
}

func NewSNSAlerter(client SNSPublisher, topicARN string) *SNSAlerter {
	return &SNSAlerter{client: client, topicARN: topicARN}
}

type failureAlert struct {
	RunID     string    `json:"runId"`
	UserEmail string    `json:"userEmail"`
	Topics    []string  `json:"topics"`
	Stage     State     `json:"stage"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	FailedAt  time.Time `json:"failedAt"`
}

func (a *SNSAlerter) Alert(ctx context.Context, run *Run) error {
	if run == nil || run.Err == nil {
		return nil
	}

	body, err := json.Marshal(failureAlert{
		RunID:     run.ID,
		UserEmail: run.UserEmail,
		Topics:    run.Topics,
		Stage:     run.FailedStage,
		Code:      run.Err.Code,
		Message:   run.Err.Message,
		FailedAt:  run.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(fmt.Sprintf("Newsletter run failed at %s", run.FailedStage)),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
