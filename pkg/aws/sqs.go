package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

var ErrEmptyQueue = errors.New("empty queue url")

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSProducer sends messages to a single queue.
type SQSProducer struct {
	client   sqsAPI
	queueURL string
}

func NewSQSProducer(cfg sdkaws.Config, queueURL string) *SQSProducer {
	return &SQSProducer{client: sqs.NewFromConfig(cfg), queueURL: queueURL}
}

// SendMessage sends a single message to the queue
func (p *SQSProducer) SendMessage(ctx context.Context, body string) error {
	if p.queueURL == "" {
		return ErrEmptyQueue
	}
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(p.queueURL),
		MessageBody: sdkaws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
