package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{ProjectID: "p", TopicID: "stripe-events"}).Validate())
	assert.Error(t, (&Config{TopicID: "t"}).Validate())
	assert.Error(t, (&Config{ProjectID: "p"}).Validate())
	assert.Error(t, (&Config{ProjectID: "p", TopicID: "t", CredentialsPath: "/does/not/exist.json"}).Validate())
}

func TestConnectionString(t *testing.T) {
	c := &Config{ProjectID: "acme", TopicID: "stripe-events", CredentialsJSON: `{"private_key":"secret"}`}
	assert.Equal(t, "pubsub://acme/stripe-events", c.GetConnectionString())
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(&Config{}))
	assert.Len(t, ClientOptions(&Config{CredentialsJSON: "{}"}), 1)
	assert.Len(t, ClientOptions(&Config{CredentialsPath: "/tmp/key.json"}), 1)
	assert.Len(t, ClientOptions(&Config{CredentialsJSON: "{}", CredentialsPath: "/tmp/key.json"}), 1)
}
