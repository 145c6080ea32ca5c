package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/metrics"
)

// SESClient is the part of *sesv2.Client used by SESSender.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends mail through the Amazon SES v2 API.
type SESSender struct {
	client SESClient
	from   string
	log    *zap.SugaredLogger
}

// NewSESSender loads AWS configuration for cfg.SES.Region. Static
// credentials are used when both keys are set, otherwise the default
// credential chain applies.
func NewSESSender(ctx context.Context, cfg config.Mail, log *zap.SugaredLogger) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SES.Region)}
	if cfg.SES.AccessKeyID != "" && cfg.SES.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Named("mail").Infow("Initializing SES mail sender", "region", cfg.SES.Region)
	return NewSESSenderWithClient(sesv2.NewFromConfig(awsCfg), ConfigFrom(cfg), log), nil
}

// NewSESSenderWithClient wraps an existing client. Only the sender fields
// of cfg are used.
func NewSESSenderWithClient(client SESClient, cfg Config, log *zap.SugaredLogger) *SESSender {
	from := cfg.SenderAddress
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderAddress)
	}
	return &SESSender{client: client, from: from, log: log.Named("mail")}
}

func (s *SESSender) Send(ctx context.Context, msg RenderedMessage) error {
	if msg.Recipient == "" {
		metrics.MailSendFailure.WithLabelValues(TransportSES).Inc()
		return fmt.Errorf("mail has no recipient")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.Recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(TransportSES).Inc()
		s.log.Errorw("Failed to send mail", "recipient", msg.Recipient, "subject", msg.Subject, "error", err)
		return fmt.Errorf("failed to send mail to %s via SES: %w", msg.Recipient, err)
	}

	metrics.MailSendSuccess.WithLabelValues(TransportSES).Inc()
	s.log.Infow("Mail sent",
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"messageId", aws.ToString(out.MessageId))
	return nil
}
