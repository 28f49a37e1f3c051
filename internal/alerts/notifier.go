// internal/alerts/notifier.go
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/errors"
	"insurance-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

const (
	sendTimeout     = 10 * time.Second
	defaultCooldown = 5 * time.Minute
)

// delivery failures retry with the budget the error taxonomy assigns to
// notification sends
var sendAttempts = 1 + errors.GetRetryCount(errors.ErrCodeNotificationSendFailed)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier delivers operational alerts to the on-call channels: an SNS topic
// and an SES-backed email list, each individually toggleable. Repeat alerts
// for the same key inside the cooldown window are suppressed.
type Notifier struct {
	cfg       config.AlertsConfig
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	cooldown  time.Duration
	attempts  int
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewNotifier(ctx context.Context, cfg config.AlertsConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "alerts"}),
		cooldown: defaultCooldown,
		attempts: sendAttempts,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
	if !cfg.Enabled {
		return n, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.SNS.Enabled {
		n.snsClient = sns.NewFromConfig(awsCfg)
	}
	if cfg.Email.Enabled {
		n.sesClient = ses.NewFromConfig(awsCfg)
	}
	return n, nil
}

// SchemaReloadFailed reports a schema document that failed validation on a
// hot reload. The registry keeps serving the previously loaded document.
func (n *Notifier) SchemaReloadFailed(path string, cause error) {
	n.send("schema-reload-failed",
		"Intent schema reload failed",
		fmt.Sprintf("The intent schema at %s failed to reload: %v\n\nThe previously loaded schema remains active.", path, cause))
}

// ClassifierCircuitOpen reports the intent oracle's circuit breaker tripping
// open. Hot paths should call this from their own goroutine.
func (n *Notifier) ClassifierCircuitOpen() {
	n.send("oracle-circuit-open",
		"Intent classifier circuit open",
		"The intent classification API tripped its circuit breaker after repeated failures. Turns fall back to the FAQ intent until the breaker closes.")
}

func (n *Notifier) send(key, subject, body string) {
	if !n.cfg.Enabled {
		return
	}
	if n.suppressed(key) {
		n.logger.Debug("alert suppressed inside cooldown", map[string]interface{}{
			"key": key,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if n.snsClient != nil && n.cfg.SNS.TopicARN != "" {
		if err := n.deliver(ctx, func(ctx context.Context) error {
			return n.publishSNS(ctx, subject, body)
		}); err != nil {
			n.logger.Error("SNS alert publish failed", map[string]interface{}{
				"error": err,
				"key":   key,
			})
		}
	}
	if n.sesClient != nil && len(n.cfg.Email.ToEmails) > 0 {
		if err := n.deliver(ctx, func(ctx context.Context) error {
			return n.sendEmail(ctx, subject, body)
		}); err != nil {
			n.logger.Error("email alert send failed", map[string]interface{}{
				"error": err,
				"key":   key,
			})
		}
	}

	n.logger.Info("ops alert dispatched", map[string]interface{}{
		"key":     key,
		"subject": subject,
	})
}

// suppressed reports whether an alert for key fired inside the cooldown
// window, recording the send time otherwise.
func (n *Notifier) suppressed(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if last, ok := n.lastSent[key]; ok && n.now().Sub(last) < n.cooldown {
		return true
	}
	n.lastSent[key] = n.now()
	return false
}

// deliver runs one channel send with exponential backoff between attempts.
func (n *Notifier) deliver(ctx context.Context, op func(context.Context) error) error {
	attempts := n.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}

func (n *Notifier) publishSNS(ctx context.Context, subject, body string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.SNS.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	return err
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: n.cfg.Email.ToEmails,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}
