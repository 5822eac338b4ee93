package storage

import (
	"stripe-webhook-router/internal/crypto"
	"stripe-webhook-router/internal/subscription"
)

// SecretCodec seals and opens secret subscription properties
type SecretCodec struct {
	encryptor *crypto.ConfigEncryptor
}

// NewSecretCodec returns a codec for key. An empty key stores secrets in
// plain text, which is only suitable for development.
func NewSecretCodec(key string) (*SecretCodec, error) {
	if key == "" {
		return &SecretCodec{}, nil
	}
	encryptor, err := crypto.NewConfigEncryptor(key)
	if err != nil {
		return nil, err
	}
	return &SecretCodec{encryptor: encryptor}, nil
}

// Enabled reports whether secrets are encrypted at rest
func (c *SecretCodec) Enabled() bool {
	return c != nil && c.encryptor != nil
}

// Seal returns a copy of props with secret values encrypted
func (c *SecretCodec) Seal(props map[string]interface{}) (map[string]interface{}, error) {
	out := copyProps(props)
	if !c.Enabled() {
		return out, nil
	}
	for _, key := range subscription.SecretProperties {
		value, ok := out[key].(string)
		if !ok || value == "" || crypto.IsEncrypted(value) {
			continue
		}
		sealed, err := c.encryptor.Encrypt(value)
		if err != nil {
			return nil, err
		}
		out[key] = sealed
	}
	return out, nil
}

// Open returns a copy of props with secret values decrypted
func (c *SecretCodec) Open(props map[string]interface{}) (map[string]interface{}, error) {
	out := copyProps(props)
	for _, key := range subscription.SecretProperties {
		value, ok := out[key].(string)
		if !ok || !crypto.IsEncrypted(value) {
			continue
		}
		if !c.Enabled() {
			return nil, errNoKey
		}
		opened, err := c.encryptor.Decrypt(value)
		if err != nil {
			return nil, err
		}
		out[key] = opened
	}
	return out, nil
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
