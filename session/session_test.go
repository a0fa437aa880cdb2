package session

import (
	"testing"
	"time"

	"github.com/aojiaoxiaolinlin/bot-go/gateway"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("QQ_APP_ID", "app_1")
	t.Setenv("QQ_CLIENT_SECRET", "secret_1")
	t.Setenv("QQ_BIND_ADDR", ":9999")
	t.Setenv("QQ_INTENTS", "33554432")
	t.Setenv("QQ_HEARTBEAT_ACK_TIMEOUT", "3s")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal("config failed:", err)
	}

	if cfg.AppID != "app_1" || cfg.ClientSecret != "secret_1" {
		t.Errorf("wrong credentials: %+v", cfg)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("wrong addr: %q", cfg.Addr)
	}
	if cfg.Intents != gateway.IntentGroupAndC2CEvent {
		t.Errorf("wrong intents: %d", cfg.Intents)
	}
	if cfg.AckTimeout != 3*time.Second {
		t.Errorf("wrong ack timeout: %v", cfg.AckTimeout)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QQ_APP_ID", "app_1")
	t.Setenv("QQ_CLIENT_SECRET", "secret_1")
	t.Setenv("QQ_BIND_ADDR", "")
	t.Setenv("QQ_INTENTS", "")
	t.Setenv("QQ_HEARTBEAT_ACK_TIMEOUT", "")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal("config failed:", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("wrong default addr: %q", cfg.Addr)
	}
	if cfg.Intents != 0 {
		t.Errorf("intents should default to zero, got %d", cfg.Intents)
	}
}

func TestConfigFromEnvMissing(t *testing.T) {
	t.Setenv("QQ_APP_ID", "")
	t.Setenv("QQ_CLIENT_SECRET", "")

	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected an error for missing credentials")
	}
}

func TestConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("QQ_APP_ID", "app_1")
	t.Setenv("QQ_CLIENT_SECRET", "secret_1")

	t.Setenv("QQ_INTENTS", "not_a_number")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected an error for bad intents")
	}

	t.Setenv("QQ_INTENTS", "")
	t.Setenv("QQ_HEARTBEAT_ACK_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected an error for bad timeout")
	}
}
