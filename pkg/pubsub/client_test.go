package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	t.Parallel()

	c := &Client{projectID: "loggas-prod"}

	require.Equal(t, "projects/loggas-prod/topics/domain", c.qualify(kindTopic, "domain"))
	require.Equal(t, "projects/loggas-prod/subscriptions/analytics", c.qualify(kindSubscription, " analytics "))
	require.Equal(t, "projects/other/topics/x", c.qualify(kindTopic, "projects/other/topics/x"))
	require.Empty(t, c.qualify(kindTopic, ""))
	require.Empty(t, (&Client{}).qualify(kindTopic, "domain"))
}

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	t.Parallel()

	require.Empty(t, subscriptionNames(config.PubSubConfig{}))
	require.Equal(t, []string{"analytics"}, subscriptionNames(config.PubSubConfig{AnalyticsSubscription: "analytics"}))
}

func TestRequiredResources(t *testing.T) {
	t.Parallel()

	c := &Client{cfg: config.PubSubConfig{DomainTopic: "domain", AnalyticsSubscription: "analytics"}}
	require.Equal(t, []resource{
		{kind: kindTopic, name: "domain"},
		{kind: kindSubscription, name: "analytics"},
	}, c.required())
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	require.Nil(t, c.Publisher("domain"))
	require.Nil(t, c.Subscription("analytics"))
	require.ErrorIs(t, c.Ping(context.Background()), errClosed)
	require.NoError(t, c.Close())
}

func TestClientOptionsFromCredentials(t *testing.T) {
	t.Parallel()

	require.Empty(t, ClientOptions(config.GCPConfig{}))
	require.Len(t, ClientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	require.Len(t, ClientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/gcp.json"}), 1)
}
