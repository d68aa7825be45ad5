package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/loggas/loggas-backend/pkg/pubsub"
)

// topicSource hands out publishers by topic; tests swap in fakes.
type topicSource interface {
	Ping(context.Context) error
	Topic(name string) publisher
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (serverID string, err error)
}

type pubsubTopics struct {
	client *pubsub.Client
}

func newPubSubTopics(client *pubsub.Client) *pubsubTopics {
	return &pubsubTopics{client: client}
}

func (t *pubsubTopics) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

// Topic returns nil for a topic the client cannot resolve, which dispatch
// treats as non-retryable.
func (t *pubsubTopics) Topic(name string) publisher {
	p := t.client.Publisher(name)
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := g.p.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return gcpResult{res}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("publish result is nil")
	}
	return g.r.Get(ctx)
}
