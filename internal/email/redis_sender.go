package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"hometour/portal/internal/config"
)

// RedisSender captures outgoing emails in Redis instead of delivering them.
// End-to-end tests and local development read the most recent message per
// recipient from the mock:email:<address> key.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// Send stores a JSON representation of the email under a per-recipient key
// with a one hour TTL.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	emailData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal captured email: %w", err)
	}

	for _, recipient := range to {
		key := fmt.Sprintf("mock:email:%s", strings.ToLower(recipient))
		if err := s.client.Set(ctx, key, data, time.Hour).Err(); err != nil {
			return fmt.Errorf("failed to store captured email for %s: %w", recipient, err)
		}
	}

	log.Printf("RedisSender: captured email to %v (Subject: %s)", to, subject)
	return nil
}
