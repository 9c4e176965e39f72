package logstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

type fakeCloudWatch struct {
	out *cloudwatchlogs.GetLogEventsOutput
	err error
	in  *cloudwatchlogs.GetLogEventsInput
}

func (f *fakeCloudWatch) GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestCloudWatchGetLogEvents(t *testing.T) {
	t.Run("maps request and response", func(t *testing.T) {
		api := &fakeCloudWatch{out: &cloudwatchlogs.GetLogEventsOutput{
			Events: []types.OutputLogEvent{
				{Message: aws.String("REPORT RequestId: a"), Timestamp: aws.Int64(1700000000000)},
			},
			NextForwardToken: aws.String("f/next"),
		}}
		cw := &CloudWatch{api: api}

		page, err := cw.GetLogEvents(context.Background(), &Query{
			LogGroup: "g", LogStream: "s", Cursor: aws.String("f/prev"), Limit: 100, StartFromHead: true,
		})
		if err != nil {
			t.Fatalf("GetLogEvents: %v", err)
		}
		if aws.ToString(api.in.LogGroupName) != "g" || aws.ToString(api.in.NextToken) != "f/prev" {
			t.Fatalf("input=%+v", api.in)
		}
		if aws.ToInt32(api.in.Limit) != 100 || !aws.ToBool(api.in.StartFromHead) {
			t.Fatalf("input=%+v", api.in)
		}
		if len(page.Events) != 1 || page.Events[0].Message != "REPORT RequestId: a" {
			t.Fatalf("events=%+v", page.Events)
		}
		if page.Events[0].Timestamp.UnixMilli() != 1700000000000 {
			t.Fatalf("timestamp=%v", page.Events[0].Timestamp)
		}
		if aws.ToString(page.NextCursor) != "f/next" {
			t.Fatalf("cursor=%v", page.NextCursor)
		}
	})

	t.Run("resource not found", func(t *testing.T) {
		cw := &CloudWatch{api: &fakeCloudWatch{err: &types.ResourceNotFoundException{Message: aws.String("The specified log stream does not exist.")}}}
		_, err := cw.GetLogEvents(context.Background(), &Query{LogGroup: "g", LogStream: "s"})
		if !errors.Is(err, domain.ErrStreamNotFound) {
			t.Fatalf("err=%v, want ErrStreamNotFound", err)
		}
		var nf *types.ResourceNotFoundException
		if !errors.As(err, &nf) {
			t.Fatalf("original error lost: %v", err)
		}
	})

	t.Run("other errors", func(t *testing.T) {
		cw := &CloudWatch{api: &fakeCloudWatch{err: errors.New("access denied")}}
		_, err := cw.GetLogEvents(context.Background(), &Query{LogGroup: "g", LogStream: "s"})
		if err == nil || errors.Is(err, domain.ErrStreamNotFound) {
			t.Fatalf("err=%v", err)
		}
	})
}
