package aws

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogs struct {
	groupErr  error
	putErr    error
	retention []*cloudwatchlogs.PutRetentionPolicyInput
	puts      []*cloudwatchlogs.PutLogEventsInput
	nextToken int
}

func (m *mockLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, m.groupErr
}

func (m *mockLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (m *mockLogs) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	m.retention = append(m.retention, in)
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (m *mockLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	m.puts = append(m.puts, in)
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.nextToken++
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: sdkaws.String(fmt.Sprintf("token-%d", m.nextToken))}, nil
}

func TestCloudWatchLogs_EnsureLogGroupToleratesExisting(t *testing.T) {
	api := &mockLogs{groupErr: &types.ResourceAlreadyExistsException{}}
	c := &CloudWatchLogsClient{client: api, logGroupName: "/ecommerce/services"}

	require.NoError(t, c.ensureLogGroup(context.Background()))
	require.Len(t, api.retention, 1)
	assert.Equal(t, int32(30), *api.retention[0].RetentionInDays)

	api.groupErr = errors.New("denied")
	assert.Error(t, c.ensureLogGroup(context.Background()))
}

func TestCloudWatchLogs_WriteCarriesSequenceToken(t *testing.T) {
	api := &mockLogs{}
	c := &CloudWatchLogsClient{client: api, logGroupName: "g", logStreamName: "s"}

	n, err := c.Write([]byte(`{"msg":"one"}`))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	_, _ = c.Write([]byte(`{"msg":"two"}`))

	require.Len(t, api.puts, 2)
	assert.Nil(t, api.puts[0].SequenceToken)
	assert.Equal(t, `{"msg":"one"}`, *api.puts[0].LogEvents[0].Message)
	require.NotNil(t, api.puts[1].SequenceToken)
	assert.Equal(t, "token-1", *api.puts[1].SequenceToken)
	assert.NoError(t, c.Sync())
}

func TestCloudWatchLogs_WriteNeverFailsCaller(t *testing.T) {
	api := &mockLogs{putErr: errors.New("throttled")}
	c := &CloudWatchLogsClient{client: api, logGroupName: "g", logStreamName: "s"}

	n, err := c.Write([]byte("line"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, c.PutLogEvents(context.Background(), nil))
}
