// Package pubsub wraps the Pub/Sub v2 client for the change feed: the
// outbox publisher writes to the domain topic and workers read from their
// subscriptions.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub domain topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// resource is a topic or subscription the process cannot run without.
type resource struct {
	kind string
	name string
}

// NewClient dials Pub/Sub and fails fast when the domain topic or a
// configured subscription is missing. Resources are provisioned by infra,
// never created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.DomainTopic) == "" {
		return nil, errTopicRequired
	}

	raw, err := pubsub.NewClient(ctx, gcp.ProjectID, ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     raw,
		projectID:  gcp.ProjectID,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.verify(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":         cfg.DomainTopic,
			"subscriptions": len(c.required()) - 1,
		}), "pubsub client initialized")
	}
	return c, nil
}

// ClientOptions turns GCP credentials config into options shared by every
// Google client. Inline JSON wins over a credentials file; with neither the
// SDK falls back to application default credentials.
func ClientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return []option.ClientOption{}
}

func (c *Client) required() []resource {
	out := []resource{{kind: kindTopic, name: c.cfg.DomainTopic}}
	for _, name := range subscriptionNames(c.cfg) {
		out = append(out, resource{kind: kindSubscription, name: name})
	}
	return out
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	names := []string{}
	if name := strings.TrimSpace(cfg.AnalyticsSubscription); name != "" {
		names = append(names, name)
	}
	return names
}

func (c *Client) verify(ctx context.Context) error {
	for _, r := range c.required() {
		full := c.qualify(r.kind, r.name)
		var err error
		switch r.kind {
		case kindTopic:
			_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		case kindSubscription:
			_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		}
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(r.kind, "s"), r.name)
		}
		if err != nil {
			return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(r.kind, "s"), r.name, err)
		}
	}
	return nil
}

// Subscription returns a Subscriber for an ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.qualify(kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// AnalyticsSubscription returns the subscriber feeding the BigQuery writer.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns the cached publisher for a topic. Publishers batch in
// the background, so one handle per topic lives until Close.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.qualify(kindTopic, name)
	if full == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	if c.publishers == nil {
		c.publishers = map[string]*pubsub.Publisher{}
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

func (c *Client) DomainTopic() string { return c.cfg.DomainTopic }

// Ping re-checks that every required resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	return c.verify(ctx)
}

// Close flushes pending publishes, then releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// qualify expands a bare ID into projects/<p>/<kind>/<id>; full names of the
// right kind pass through.
func (c *Client) qualify(kind, name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	project := strings.TrimSpace(c.projectID)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + n
}
