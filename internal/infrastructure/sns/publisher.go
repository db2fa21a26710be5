package snsinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-notify-nosql/internal/config"
	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while the topic is being skipped after repeated failures.
var ErrBreakerOpen = errors.New("offline publisher circuit open")

// API is the subset of the SNS client the publisher uses.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher forwards notifications for users with no live connection to an
// SNS topic consumed by mobile-push workers.
type Publisher struct {
	client   API
	topicARN string
	breaker  *gobreaker.CircuitBreaker[any]
	logger   *zap.Logger
}

// BreakerSettings controls when the publisher stops calling SNS.
type BreakerSettings struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

var defaultBreaker = BreakerSettings{FailureThreshold: 5, Timeout: 30 * time.Second}

// NewClient builds an SNS client from the AWS settings in cfg.
func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

func NewPublisher(client API, topicARN string, logger *zap.Logger) *Publisher {
	return NewPublisherWithBreaker(client, topicARN, defaultBreaker, logger)
}

func NewPublisherWithBreaker(client API, topicARN string, bs BreakerSettings, logger *zap.Logger) *Publisher {
	logger = logger.Named("sns")
	settings := gobreaker.Settings{
		Name:    "sns-offline",
		Timeout: bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		logger:   logger,
	}
}

// Publish sends n to the topic with a user_id attribute for subscription filtering.
func (p *Publisher) Publish(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return p.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(p.topicARN),
			Message:  aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"user_id": {DataType: aws.String("String"), StringValue: aws.String(n.UserID)},
				"type":    {DataType: aws.String("String"), StringValue: aws.String(string(n.Type))},
			},
		})
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.OfflinePublishes.WithLabelValues("skipped").Inc()
		return ErrBreakerOpen
	case err != nil:
		metrics.OfflinePublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	metrics.OfflinePublishes.WithLabelValues("ok").Inc()
	return nil
}
