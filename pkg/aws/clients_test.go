package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sns.PublishOutput{}, m.err
}

func TestSNSClient_Publish(t *testing.T) {
	api := &mockSNS{}
	c := &SNSClient{client: api}

	require.NoError(t, c.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:registry", []byte(`{"a":1}`)))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:registry", *api.inputs[0].TopicArn)
	assert.Equal(t, `{"a":1}`, *api.inputs[0].Message)
	assert.Empty(t, api.inputs[0].MessageAttributes)

	assert.ErrorIs(t, c.Publish(context.Background(), "", nil), ErrEmptyTopic)

	api.err = errors.New("auth")
	assert.ErrorContains(t, c.Publish(context.Background(), "arn:x", nil), "sns publish failed for topic arn:x")
}

func TestSNSClient_PublishEventTagsType(t *testing.T) {
	api := &mockSNS{}
	c := &SNSClient{client: api}

	require.NoError(t, c.PublishEvent(context.Background(), "arn:registry", "registry.code_contributed", []byte(`{}`)))
	require.Len(t, api.inputs, 1)
	attr, ok := api.inputs[0].MessageAttributes[EventTypeAttribute]
	require.True(t, ok)
	assert.Equal(t, "String", *attr.DataType)
	assert.Equal(t, "registry.code_contributed", *attr.StringValue)
}

type mockSQS struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, in)
	return &sqs.SendMessageOutput{}, m.err
}

func TestSQSProducer_SendMessage(t *testing.T) {
	api := &mockSQS{}
	p := &SQSProducer{client: api, queueURL: "http://localstack:4566/000000000000/notifications"}

	require.NoError(t, p.SendMessage(context.Background(), "hello"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "hello", *api.sent[0].MessageBody)
	assert.Equal(t, p.queueURL, *api.sent[0].QueueUrl)

	empty := &SQSProducer{client: api}
	assert.ErrorIs(t, empty.SendMessage(context.Background(), "x"), ErrEmptyQueue)
}

type mockSecrets struct {
	calls  int
	values map[string]string
}

func (m *mockSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	v, ok := m.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
}

func TestSecretsClient_CachesValues(t *testing.T) {
	api := &mockSecrets{values: map[string]string{"product-wizard/JWT_SECRET": `{"JWT_SECRET":"s3cret"}`}}
	c := newSecretsClient(api)

	m, err := c.GetSecretMap(context.Background(), "product-wizard/JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", m["JWT_SECRET"])

	_, err = c.GetSecret(context.Background(), "product-wizard/JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestSecretsClient_Errors(t *testing.T) {
	api := &mockSecrets{values: map[string]string{"plain": "not-json"}}
	c := newSecretsClient(api)

	_, err := c.GetSecret(context.Background(), "missing")
	assert.ErrorContains(t, err, "failed to get secret missing")

	_, err = c.GetSecretMap(context.Background(), "plain")
	assert.ErrorContains(t, err, "is not a json object")
}
