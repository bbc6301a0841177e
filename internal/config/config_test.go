package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Cache.Capacity != 10000 {
		t.Fatalf("expected default cache capacity, got %d", cfg.Cache.Capacity)
	}
	if cfg.Broadcast.MaxInflight != 100 {
		t.Fatalf("expected default broadcast max inflight, got %d", cfg.Broadcast.MaxInflight)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BABELCAST_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("BABELCAST_BUS_USERNAME", "alice")
	t.Setenv("BABELCAST_BUS_PASSWORD", "secret")
	t.Setenv("BABELCAST_CACHE_CAPACITY", "500")
	t.Setenv("BABELCAST_CACHE_TTL_SECONDS", "60")
	t.Setenv("BABELCAST_TRANSLATION_MODE", "http")
	t.Setenv("BABELCAST_TRANSLATION_ENDPOINT", "http://translator:9000")
	t.Setenv("BABELCAST_TRANSLATION_TIMEOUT_MS", "1500")
	t.Setenv("BABELCAST_BROADCAST_MAX_INFLIGHT", "32")
	t.Setenv("BABELCAST_BUFFER_MAX_OUTSTANDING_SECS", "6.5")
	t.Setenv("BABELCAST_SEGMENT_LOG_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Cache.Capacity != 500 || cfg.Cache.TTLSeconds != 60 {
		t.Fatalf("expected cache overrides, got %+v", cfg.Cache)
	}
	if cfg.Translation.Mode != "http" || cfg.Translation.Endpoint != "http://translator:9000" {
		t.Fatalf("expected translation overrides, got %+v", cfg.Translation)
	}
	if cfg.Translation.TimeoutMS != 1500 {
		t.Fatalf("expected translation timeout override, got %d", cfg.Translation.TimeoutMS)
	}
	if cfg.Broadcast.MaxInflight != 32 {
		t.Fatalf("expected broadcast override, got %d", cfg.Broadcast.MaxInflight)
	}
	if cfg.Buffer.MaxOutstandingSecs != 6.5 {
		t.Fatalf("expected buffer override, got %f", cfg.Buffer.MaxOutstandingSecs)
	}
	if cfg.SegmentLog.RetentionMode != "persistent" {
		t.Fatalf("expected segment log retention override, got %s", cfg.SegmentLog.RetentionMode)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("BABELCAST_TRANSLATION_MODE", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid translation mode")
	}
}

func TestValidateHTTPModeRequiresEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Translation.Mode = "http"
	cfg.Translation.Endpoint = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for http mode without endpoint")
	}
}
