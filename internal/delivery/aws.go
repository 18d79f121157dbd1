package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"pomodoro/internal/notification"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if r := strings.TrimSpace(region); r != "" {
		opts = append(opts, awsconfig.WithRegion(r))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return cfg, nil
}

// SNS publishes the alert to a topic; subscribers pick their own protocol.
type SNS struct {
	client   snsAPI
	topicARN string
}

func NewSNS(ctx context.Context, region, topicARN string) (*SNS, error) {
	s := &SNS{topicARN: strings.TrimSpace(topicARN)}
	if s.topicARN == "" {
		return s, nil
	}
	cfg, err := loadAWS(ctx, region)
	if err != nil {
		return nil, err
	}
	s.client = sns.NewFromConfig(cfg)
	return s, nil
}

func (s *SNS) Name() string { return "sns" }

func (s *SNS) Deliver(ctx context.Context, a notification.Alert) error {
	if s.client == nil || s.topicARN == "" {
		return ErrNotConfigured
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(a.Summary),
		Message:  aws.String(a.Body),
	})
	if err != nil {
		return transportErr(s.Name(), fmt.Errorf("sns publish failed: %w", err))
	}
	return nil
}

// SES emails the alert to a fixed recipient list.
type SES struct {
	client sesAPI
	from   string
	to     []string
}

func NewSES(ctx context.Context, region, from string, to []string) (*SES, error) {
	s := &SES{from: strings.TrimSpace(from)}
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			s.to = append(s.to, addr)
		}
	}
	if s.from == "" || len(s.to) == 0 {
		return s, nil
	}
	cfg, err := loadAWS(ctx, region)
	if err != nil {
		return nil, err
	}
	s.client = ses.NewFromConfig(cfg)
	return s, nil
}

func (s *SES) Name() string { return "ses" }

func (s *SES) Deliver(ctx context.Context, a notification.Alert) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &sestypes.Destination{ToAddresses: s.to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(a.Summary), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(a.Body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return transportErr(s.Name(), fmt.Errorf("ses send failed: %w", err))
	}
	return nil
}
