package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/activitysink/activitysink/internal/errors"
)

type fakeKinesis struct {
	inputs []*kinesis.PutRecordInput
	err    error
}

func (f *fakeKinesis) PutRecord(ctx context.Context, in *kinesis.PutRecordInput, _ ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &kinesis.PutRecordOutput{
		SequenceNumber: aws.String("49590338271490256608559692538361571095921575989136588898"),
		ShardId:        aws.String("shardId-000000000000"),
	}, nil
}

func TestKinesisChannel_Submit(t *testing.T) {
	fake := &fakeKinesis{}
	ch := NewKinesisChannelWithClient(fake, "user-activity-stream")

	payload := []byte(`{"user_id":"user_3","event":"login","timestamp":1700000000}`)
	require.NoError(t, ch.Submit(context.Background(), "user_3", payload))

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "user-activity-stream", aws.ToString(in.StreamName))
	assert.Equal(t, "user_3", aws.ToString(in.PartitionKey))
	assert.Equal(t, payload, in.Data)
	assert.Nil(t, in.ExplicitHashKey)
	assert.Nil(t, in.SequenceNumberForOrdering)
}

func TestKinesisChannel_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"throttled", &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}, perrors.CodeThrottled, true},
		{"missing stream", &types.ResourceNotFoundException{Message: aws.String("no such stream")}, perrors.CodeStreamMissing, false},
		{"other", errors.New("connection reset"), perrors.CodeSubmitFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewKinesisChannelWithClient(&fakeKinesis{err: tt.err}, "s")
			err := ch.Submit(context.Background(), "user_1", []byte("{}"))
			require.Error(t, err)
			assert.Equal(t, perrors.ErrCategoryChannel, perrors.GetCategory(err))
			assert.Equal(t, tt.code, perrors.GetCode(err))
			assert.Equal(t, tt.retryable, perrors.IsRetryable(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
