package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// stubSQSClient captures the send input.
type stubSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (s *stubSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	client := &stubSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123/archive",
		client:   client,
		log:      ensureLogger(nil),
	}

	evt := testEvent()
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if client.input == nil {
		t.Fatalf("no message sent")
	}
	if got := *client.input.QueueUrl; got != pub.queueURL {
		t.Fatalf("queue url = %q", got)
	}

	var sent Event
	if err := json.Unmarshal([]byte(*client.input.MessageBody), &sent); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if sent.URL != evt.URL || sent.Title != evt.Title {
		t.Fatalf("sent event = %+v", sent)
	}

	attr, ok := client.input.MessageAttributes["url"]
	if !ok || *attr.StringValue != evt.URL {
		t.Fatalf("url attribute = %+v", client.input.MessageAttributes)
	}
}

func TestSQSPublisherSurfacesSendError(t *testing.T) {
	pub := &sqsPublisher{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123/archive",
		client:   &stubSQSClient{err: fmt.Errorf("throttled")},
		log:      ensureLogger(nil),
	}

	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected the send error")
	}
}
