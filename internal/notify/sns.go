package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/cockroachdb/errors"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
)

// SNSAPI is the slice of the SNS client the deliverer uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSDeliverer publishes each event as JSON to one topic. Event type,
// company and priority travel as message attributes so subscribers can
// filter without decoding the body.
type SNSDeliverer struct {
	client   SNSAPI
	topicARN string
}

func NewSNSDeliverer(client SNSAPI, topicARN string) *SNSDeliverer {
	return &SNSDeliverer{client: client, topicARN: topicARN}
}

// NewSNSClient builds an SNS client from the default AWS credential chain.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return sns.NewFromConfig(cfg), nil
}

func (d *SNSDeliverer) Deliver(ctx context.Context, ev entity.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	attrs := map[string]types.MessageAttributeValue{
		"event_type": stringAttr(string(ev.Type)),
		"company_id": stringAttr(ev.CompanyID.String()),
	}
	if ev.Priority != "" {
		attrs["priority"] = stringAttr(string(ev.Priority))
	}

	_, err = d.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(d.topicARN),
		Message:           aws.String(string(body)),
		Subject:           aws.String(string(ev.Type)),
		MessageAttributes: attrs,
	})
	return apperr.Upstream(err, "sns")
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
