package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/loggas/loggas-backend/pkg/config"
)

func TestNewClientValidatesKeyMode(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
		mode    Mode
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_1"}, mode: ModeTest},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_abc", Secret: "whsec_1", Env: "LIVE"}, mode: ModeLive},
		{name: "live key in test mode", cfg: config.StripeConfig{APIKey: "sk_live_abc", Secret: "whsec_1", Env: "test"}, wantErr: true},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_abc"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_1", Env: "staging"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.mode, client.Mode())
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	client := &Client{mode: ModeTest, signingSecret: "whsec_test"}
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","api_version":%q,"data":{"object":{}}}`, stripego.APIVersion))

	event, err := client.VerifyEvent(payload, sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)

	_, err = client.VerifyEvent(payload, sign(payload, "whsec_other", time.Now()))
	assert.Error(t, err)

	_, err = client.VerifyEvent(payload, sign(payload, "whsec_test", time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

func TestVerifyEventWithoutClient(t *testing.T) {
	var client *Client
	_, err := client.VerifyEvent([]byte(`{}`), "t=1,v1=00")
	assert.ErrorIs(t, err, errSecretRequired)
}

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
