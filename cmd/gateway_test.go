package cmd

import (
	"errors"
	"testing"

	"showbot/pkg/config"
)

func TestNewGatewayServiceRequiresToken(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Relay.BroadcastChatID = -100

	if _, err := newGatewayService(cfg, nil); !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("newGatewayService error = %v, want ErrConfigMissing", err)
	}
}

func TestNewGatewayServiceRequiresBroadcastChat(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Telegram.Token = "123456:test-token"

	if _, err := newGatewayService(cfg, nil); !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("newGatewayService error = %v, want ErrConfigMissing", err)
	}
}
