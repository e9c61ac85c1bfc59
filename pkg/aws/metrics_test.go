package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func TestMetricsClient_DisabledSendsNothing(t *testing.T) {
	api := &mockCloudWatch{}
	m := newMetricsClient(api, "", false)

	require.NoError(t, m.RecordCount(context.Background(), MetricProductsCreated, nil))
	assert.Empty(t, api.inputs)
	assert.False(t, m.IsEnabled())

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricProductsCreated, nil))
	assert.False(t, nilClient.IsEnabled())
}

func TestMetricsClient_RecordLatency(t *testing.T) {
	api := &mockCloudWatch{}
	m := newMetricsClient(api, "ECommerce/ProductWizard", true)

	err := m.RecordLatency(context.Background(), MetricProductCreateLatency, 1500*time.Millisecond,
		map[string]string{"Service": "wizard", "Endpoint": "submit"})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "ECommerce/ProductWizard", *in.Namespace)
	datum := in.MetricData[0]
	assert.Equal(t, float64(1500), *datum.Value)
	assert.Equal(t, types.StandardUnitMilliseconds, datum.Unit)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, "Endpoint", *datum.Dimensions[0].Name)
	assert.Equal(t, "Service", *datum.Dimensions[1].Name)
}

func TestMetricsClient_DefaultNamespaceAndError(t *testing.T) {
	api := &mockCloudWatch{err: errors.New("throttled")}
	m := newMetricsClient(api, "", true)

	err := m.RecordCount(context.Background(), MetricRegistryLookups, nil)
	assert.ErrorContains(t, err, "failed to put metric")
	assert.Equal(t, "ECommerce", *api.inputs[0].Namespace)
	assert.Equal(t, types.StandardUnitCount, api.inputs[0].MetricData[0].Unit)
}

type mockTables struct {
	describeErr error
	createErr   error
	created     []*dynamodb.CreateTableInput
}

func (m *mockTables) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockTables) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.created = append(m.created, in)
	return &dynamodb.CreateTableOutput{}, m.createErr
}

func TestEnsureTable(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		api := &mockTables{}
		require.NoError(t, EnsureTable(context.Background(), api, "Products", "product_id"))
		assert.Empty(t, api.created)
	})

	t.Run("creates missing table", func(t *testing.T) {
		api := &mockTables{describeErr: &ddbtypes.ResourceNotFoundException{}}
		require.NoError(t, EnsureTable(context.Background(), api, "Products", "product_id"))
		require.Len(t, api.created, 1)
		in := api.created[0]
		assert.Equal(t, "Products", *in.TableName)
		assert.Equal(t, ddbtypes.BillingModePayPerRequest, in.BillingMode)
		assert.Equal(t, "product_id", *in.KeySchema[0].AttributeName)
		assert.Equal(t, ddbtypes.KeyTypeHash, in.KeySchema[0].KeyType)
	})

	t.Run("concurrent create is fine", func(t *testing.T) {
		api := &mockTables{
			describeErr: &ddbtypes.ResourceNotFoundException{},
			createErr:   &ddbtypes.ResourceInUseException{},
		}
		assert.NoError(t, EnsureTable(context.Background(), api, "Products", "product_id"))
	})

	t.Run("describe failure", func(t *testing.T) {
		api := &mockTables{describeErr: errors.New("no credentials")}
		assert.ErrorContains(t, EnsureTable(context.Background(), api, "Products", "product_id"), "describe table Products")
		assert.Empty(t, api.created)
	})
}
