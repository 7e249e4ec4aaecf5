// Package ses implements a Transport that sends announcements via AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/release-announcer/internal/mail"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// defaultRetryDelay is the initial delay for exponential backoff.
const defaultRetryDelay = 1 * time.Second

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Transport sends announcements via the AWS SES v2 API. The sender is the
// from address of each announcement.
type Transport struct {
	client    SendEmailAPI
	baseDelay time.Duration
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Transport with the given configuration. Static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain applies.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *Transport {
	return &Transport{
		client:    client,
		baseDelay: defaultRetryDelay,
	}
}

// Send delivers the announcement via AWS SES v2, retrying failed requests
// with exponential backoff.
func (t *Transport) Send(ctx context.Context, opts *mail.Options) error {
	if opts.From == "" {
		return fmt.Errorf("SES requires a from address")
	}

	input := buildInput(opts)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			delay := backoffDelay(t.baseDelay, attempt)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		out, err := t.client.SendEmail(ctx, input)
		if err == nil {
			if out != nil && out.MessageId != nil {
				slog.Info("announcement accepted by SES", "message_id", *out.MessageId)
			}
			return nil
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "ses"
}

// buildInput creates a plain-text SES SendEmailInput.
func buildInput(opts *mail.Options) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(opts.From),
		Destination: &types.Destination{
			ToAddresses: opts.To,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(opts.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(opts.Message),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
