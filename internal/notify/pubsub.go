package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type pubSubMessage struct {
	Users  []string  `json:"users"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// PubSubNotifier publishes one message per notification for the delivery
// service subscribed to the topic.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier uses Application Default Credentials unless
// credentialsJSON is set.
func NewPubSubNotifier(ctx context.Context, projectID string, topicID string, credentialsJSON string) (*PubSubNotifier, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if topicID == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSubNotifier{client: client, topic: client.Topic(topicID)}, nil
}

func (n *PubSubNotifier) Notify(ctx context.Context, users []string, title string, body string) error {
	data, err := json.Marshal(pubSubMessage{Users: users, Title: title, Body: body, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"source": "posting"},
	})
	_, err = result.Get(ctx)
	return err
}

func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
