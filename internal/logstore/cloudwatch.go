package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

// cloudWatchAPI 是 CloudWatch Logs SDK 客户端中用到的方法子集。
type cloudWatchAPI interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// CloudWatch 是基于 CloudWatch Logs GetLogEvents 的 Client 实现。
type CloudWatch struct {
	api cloudWatchAPI
}

// NewCloudWatch 使用默认凭证链创建 CloudWatch Logs 客户端。
// Region 为空时沿用 SDK 的默认解析（AWS_REGION 等）；Endpoint 非空时覆盖服务端点。
func NewCloudWatch(ctx context.Context, cfg config.AWSConfig) (*CloudWatch, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &CloudWatch{api: api}, nil
}

// GetLogEvents 拉取一页日志记录。
// ResourceNotFoundException 被转换为 domain.ErrStreamNotFound，原始错误仍保留在错误链中。
func (c *CloudWatch) GetLogEvents(ctx context.Context, q *Query) (*Page, error) {
	out, err := c.api.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(q.LogGroup),
		LogStreamName: aws.String(q.LogStream),
		NextToken:     q.Cursor,
		Limit:         aws.Int32(q.Limit),
		StartFromHead: aws.Bool(q.StartFromHead),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrStreamNotFound, err)
		}
		return nil, fmt.Errorf("get log events: %w", err)
	}

	page := &Page{
		Events:     make([]Event, 0, len(out.Events)),
		NextCursor: out.NextForwardToken,
	}
	for _, e := range out.Events {
		page.Events = append(page.Events, Event{
			Message:   aws.ToString(e.Message),
			Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)),
		})
	}
	return page, nil
}
