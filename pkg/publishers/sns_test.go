package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// stubSNSClient captures the publish input.
type stubSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (s *stubSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSPublisherSendsEvent(t *testing.T) {
	client := &stubSNSClient{}
	pub := &snsPublisher{
		id:       "topic",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:us-east-1:123:archive",
		client:   client,
		log:      ensureLogger(nil),
	}

	evt := testEvent()
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if client.input == nil {
		t.Fatalf("no message published")
	}
	if got := *client.input.TopicArn; got != pub.topicARN {
		t.Fatalf("topic arn = %q", got)
	}

	var sent Event
	if err := json.Unmarshal([]byte(*client.input.Message), &sent); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if sent.URL != evt.URL {
		t.Fatalf("sent event = %+v", sent)
	}
}

func TestSNSPublisherSurfacesPublishError(t *testing.T) {
	pub := &snsPublisher{
		id:       "topic",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:us-east-1:123:archive",
		client:   &stubSNSClient{err: fmt.Errorf("access denied")},
		log:      ensureLogger(nil),
	}

	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected the publish error")
	}
}
