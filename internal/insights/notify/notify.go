// internal/insights/notify/notify.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"audit-insights/internal/models"
)

const EventInsightsGenerated = "insights.generated"

var ErrPublishFailed = errors.New("PUBLISH_FAILED")

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Event is the message body published after a section produced insights.
type Event struct {
	Type         string    `json:"type"`
	AuditID      string    `json:"auditId"`
	SectionID    string    `json:"sectionId"`
	Keys         []string  `json:"keys"`
	TotalMonthly float64   `json:"totalMonthlyImpact"`
	Currency     string    `json:"currency,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewEvent summarizes resp. The currency is taken from the first insight.
func NewEvent(resp *models.GenerateResponse, at time.Time) Event {
	ev := Event{
		Type:       EventInsightsGenerated,
		AuditID:    resp.AuditID,
		SectionID:  resp.SectionID,
		Keys:       resp.Keys(),
		OccurredAt: at.UTC(),
	}
	for _, in := range resp.Insights {
		ev.TotalMonthly += in.MonthlyImpact
		if ev.Currency == "" {
			ev.Currency = in.Currency
		}
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, resp *models.GenerateResponse) error
}

// SNSAPI is the subset of the SNS client used for publishing.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	logger   Logger
	now      func() time.Time
}

func NewSNSPublisher(client SNSAPI, topicARN string, log Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: log, now: time.Now}
}

func (p *SNSPublisher) Publish(ctx context.Context, resp *models.GenerateResponse) error {
	ev := NewEvent(resp, p.now())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrPublishFailed, err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(string(body)),
		Subject:  awssdk.String(EventInsightsGenerated),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: awssdk.String("String"), StringValue: awssdk.String(EventInsightsGenerated)},
			"sectionId": {DataType: awssdk.String("String"), StringValue: awssdk.String(resp.SectionID)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	p.logger.Debug("event published", map[string]interface{}{
		"event":     EventInsightsGenerated,
		"auditId":   resp.AuditID,
		"sectionId": resp.SectionID,
		"messageId": awssdk.ToString(out.MessageId),
	})
	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.GenerateResponse) error { return nil }
