package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	perrors "github.com/activitysink/activitysink/internal/errors"
)

// KinesisAPI is the subset of the Kinesis client used by KinesisChannel.
type KinesisAPI interface {
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// KinesisConfig holds configuration for the Kinesis channel.
type KinesisConfig struct {
	// StreamName is the target data stream.
	StreamName string
	// Region is the AWS region of the stream.
	Region string
	// Endpoint is an optional custom endpoint (LocalStack).
	Endpoint string
}

// KinesisChannel submits records with PutRecord, one request per record.
type KinesisChannel struct {
	client     KinesisAPI
	streamName string
}

// NewKinesisChannel creates a Kinesis channel from the default AWS credential chain.
func NewKinesisChannel(ctx context.Context, cfg KinesisConfig) (*KinesisChannel, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var kOpts []func(*kinesis.Options)
	if cfg.Endpoint != "" {
		kOpts = append(kOpts, func(o *kinesis.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewKinesisChannelWithClient(kinesis.NewFromConfig(awsCfg, kOpts...), cfg.StreamName), nil
}

// NewKinesisChannelWithClient creates a Kinesis channel with a pre-configured client.
func NewKinesisChannelWithClient(client KinesisAPI, streamName string) *KinesisChannel {
	return &KinesisChannel{client: client, streamName: streamName}
}

// StreamName returns the target stream.
func (k *KinesisChannel) StreamName() string {
	return k.streamName
}

// Submit implements Channel.
func (k *KinesisChannel) Submit(ctx context.Context, partitionKey string, data []byte) error {
	_, err := k.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(k.streamName),
		Data:         data,
		PartitionKey: aws.String(partitionKey),
	})
	if err != nil {
		return classifyKinesisError(k.streamName, err)
	}
	return nil
}

// Close implements Channel. The SDK client holds no resources to release.
func (k *KinesisChannel) Close() error {
	return nil
}

func classifyKinesisError(stream string, err error) error {
	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return perrors.NewChannelError(perrors.CodeThrottled, "put record to "+stream, err)
	}
	var missing *types.ResourceNotFoundException
	if errors.As(err, &missing) {
		return perrors.NewChannelError(perrors.CodeStreamMissing, "put record to "+stream, err)
	}
	return perrors.NewChannelError(perrors.CodeSubmitFailed, "put record to "+stream, err)
}
