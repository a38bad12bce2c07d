// Package snsbus maps the bus onto AWS: a topic is an SNS topic and a consumer
// group is an SQS queue subscribed to it with raw message delivery.
package snsbus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/bronystylecrazy/tokenbus/bus"
)

const attrKey = "key"

// SNSAPI is the subset of the SNS client the transport uses.
type SNSAPI interface {
	CreateTopic(ctx context.Context, in *sns.CreateTopicInput, opts ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	ListTopics(ctx context.Context, in *sns.ListTopicsInput, opts ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
	Subscribe(ctx context.Context, in *sns.SubscribeInput, opts ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, in *sns.UnsubscribeInput, opts ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// SQSAPI is the subset of the SQS client the transport uses.
type SQSAPI interface {
	CreateQueue(ctx context.Context, in *sqs.CreateQueueInput, opts ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, opts ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, opts ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, in *sqs.SetQueueAttributesInput, opts ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	DeleteQueue(ctx context.Context, in *sqs.DeleteQueueInput, opts ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
}

type Transport struct {
	sns SNSAPI
	sqs SQSAPI
	cfg Config

	mu     sync.Mutex
	topics map[string]string
	// subscriptions maps a queue name to its SNS subscription ARN.
	subscriptions map[string]string
}

var (
	_ bus.Transport    = (*Transport)(nil)
	_ bus.GroupRemover = (*Transport)(nil)
)

func New(snsClient SNSAPI, sqsClient SQSAPI, cfg Config) *Transport {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 10
	}
	return &Transport{
		sns:           snsClient,
		sqs:           sqsClient,
		cfg:           cfg,
		topics:        make(map[string]string),
		subscriptions: make(map[string]string),
	}
}

// CreateTopic looks the topic up before creating it, since SNS CreateTopic
// succeeds silently for an existing name.
func (t *Transport) CreateTopic(ctx context.Context, topic string) error {
	arn, err := t.lookupTopic(ctx, topic)
	if err != nil {
		return err
	}
	if arn != "" {
		return bus.ErrTopicExists
	}
	_, err = t.topicARN(ctx, topic)
	return err
}

func (t *Transport) lookupTopic(ctx context.Context, topic string) (string, error) {
	t.mu.Lock()
	arn, ok := t.topics[topic]
	t.mu.Unlock()
	if ok {
		return arn, nil
	}
	pages := sns.NewListTopicsPaginator(t.sns, &sns.ListTopicsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("snsbus: list topics: %w", err)
		}
		for _, tp := range page.Topics {
			candidate := aws.ToString(tp.TopicArn)
			if strings.HasSuffix(candidate, ":"+topic) {
				t.remember(topic, candidate)
				return candidate, nil
			}
		}
	}
	return "", nil
}

// topicARN returns the topic's ARN, creating the topic when needed.
func (t *Transport) topicARN(ctx context.Context, topic string) (string, error) {
	t.mu.Lock()
	arn, ok := t.topics[topic]
	t.mu.Unlock()
	if ok {
		return arn, nil
	}
	out, err := t.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(topic)})
	if err != nil {
		return "", fmt.Errorf("snsbus: create topic %s: %w", topic, err)
	}
	arn = aws.ToString(out.TopicArn)
	t.remember(topic, arn)
	return arn, nil
}

func (t *Transport) remember(topic, arn string) {
	t.mu.Lock()
	t.topics[topic] = arn
	t.mu.Unlock()
}

// Publish sends payload base64-encoded, since SNS bodies must be text and
// codecs may produce binary.
func (t *Transport) Publish(ctx context.Context, topic, key string, payload []byte) error {
	arn, err := t.topicARN(ctx, topic)
	if err != nil {
		return err
	}
	_, err = t.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Message:  aws.String(base64.StdEncoding.EncodeToString(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			attrKey: {DataType: aws.String("String"), StringValue: aws.String(nonEmpty(key))},
		},
	})
	if err != nil {
		return fmt.Errorf("snsbus: publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topic, group string) (bus.Subscription, error) {
	topicARN, err := t.topicARN(ctx, topic)
	if err != nil {
		return nil, err
	}
	queueName := QueueName(topic, group)
	queueURL, err := t.ensureQueue(ctx, queueName)
	if err != nil {
		return nil, err
	}
	attrs, err := t.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return nil, fmt.Errorf("snsbus: queue attributes: %w", err)
	}
	queueARN := attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]

	policy, err := queuePolicy(queueARN, topicARN)
	if err != nil {
		return nil, err
	}
	if _, err := t.sqs.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(queueURL),
		Attributes: map[string]string{string(sqstypes.QueueAttributeNamePolicy): policy},
	}); err != nil {
		return nil, fmt.Errorf("snsbus: queue policy: %w", err)
	}
	subscribed, err := t.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(topicARN),
		Protocol:              aws.String("sqs"),
		Endpoint:              aws.String(queueARN),
		Attributes:            map[string]string{"RawMessageDelivery": "true"},
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		return nil, fmt.Errorf("snsbus: subscribe %s to %s: %w", queueARN, topicARN, err)
	}
	t.mu.Lock()
	t.subscriptions[queueName] = aws.ToString(subscribed.SubscriptionArn)
	t.mu.Unlock()
	return &subscription{sqs: t.sqs, cfg: t.cfg, topic: topic, queueURL: queueURL}, nil
}

// RemoveGroup unsubscribes the group's queue from the topic and deletes the
// queue. A queue that is already gone is not an error.
func (t *Transport) RemoveGroup(ctx context.Context, topic, group string) error {
	name := QueueName(topic, group)
	t.mu.Lock()
	subscriptionARN := t.subscriptions[name]
	delete(t.subscriptions, name)
	t.mu.Unlock()
	if subscriptionARN != "" {
		if _, err := t.sns.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: aws.String(subscriptionARN)}); err != nil {
			return fmt.Errorf("snsbus: unsubscribe %s: %w", name, err)
		}
	}
	existing, err := t.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	var missing *sqstypes.QueueDoesNotExist
	switch {
	case errors.As(err, &missing):
		return nil
	case err != nil:
		return fmt.Errorf("snsbus: queue url %s: %w", name, err)
	}
	if _, err := t.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: existing.QueueUrl}); err != nil {
		return fmt.Errorf("snsbus: delete queue %s: %w", name, err)
	}
	return nil
}

// ensureQueue creates the queue, falling back to its URL when a queue of that
// name already exists with different attributes.
func (t *Transport) ensureQueue(ctx context.Context, name string) (string, error) {
	in := &sqs.CreateQueueInput{QueueName: aws.String(name)}
	if t.cfg.VisibilityTimeout > 0 {
		in.Attributes = map[string]string{
			string(sqstypes.QueueAttributeNameVisibilityTimeout): fmt.Sprint(int(t.cfg.VisibilityTimeout.Seconds())),
		}
	}
	out, err := t.sqs.CreateQueue(ctx, in)
	if err == nil {
		return aws.ToString(out.QueueUrl), nil
	}
	if !queueExists(err) {
		return "", fmt.Errorf("snsbus: create queue %s: %w", name, err)
	}
	existing, err := t.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("snsbus: queue url %s: %w", name, err)
	}
	return aws.ToString(existing.QueueUrl), nil
}

func queueExists(err error) bool {
	var exists *sqstypes.QueueNameExists
	if errors.As(err, &exists) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "QueueAlreadyExists"
}

func queuePolicy(queueARN, topicARN string) (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Effect":    "Allow",
			"Principal": map[string]string{"Service": "sns.amazonaws.com"},
			"Action":    "sqs:SendMessage",
			"Resource":  queueARN,
			"Condition": map[string]any{"ArnEquals": map[string]string{"aws:SourceArn": topicARN}},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("snsbus: queue policy: %w", err)
	}
	return string(b), nil
}

var invalidQueueChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// QueueName is the SQS queue backing group on topic.
func QueueName(topic, group string) string {
	name := invalidQueueChars.ReplaceAllString(topic+"-"+group, "_")
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

func nonEmpty(key string) string {
	if key == "" {
		return "_"
	}
	return key
}

type subscription struct {
	sqs      SQSAPI
	cfg      Config
	topic    string
	queueURL string

	mu     sync.Mutex
	closed bool
}

// Fetch long-polls the group's queue. An empty poll returns no messages and
// no error.
func (s *subscription) Fetch(ctx context.Context) ([]bus.Message, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, bus.ErrClosed
	}
	out, err := s.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(s.queueURL),
		MaxNumberOfMessages:   s.cfg.MaxMessages,
		WaitTimeSeconds:       int32(s.cfg.WaitTime.Seconds()),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("snsbus: receive %s: %w", s.topic, err)
	}
	msgs := make([]bus.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, s.convert(m))
	}
	return msgs, nil
}

// convert keeps an undecodable body as-is so the handler sees it and can
// reject it as poison.
func (s *subscription) convert(m sqstypes.Message) bus.Message {
	body := aws.ToString(m.Body)
	payload, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		payload = []byte(body)
	}
	var key string
	if attr, ok := m.MessageAttributes[attrKey]; ok {
		key = aws.ToString(attr.StringValue)
	}
	return bus.Message{
		ID:      aws.ToString(m.MessageId),
		Topic:   s.topic,
		Key:     key,
		Payload: payload,
		Receipt: aws.ToString(m.ReceiptHandle),
	}
}

func (s *subscription) Ack(ctx context.Context, msg bus.Message) error {
	handle, _ := msg.Receipt.(string)
	if handle == "" {
		return fmt.Errorf("snsbus: message %s has no receipt handle", msg.ID)
	}
	if _, err := s.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(handle),
	}); err != nil {
		return fmt.Errorf("snsbus: delete %s: %w", msg.ID, err)
	}
	return nil
}

func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
