package config

import (
	"errors"
	"strings"
	"testing"
)

type hostField struct {
	Host string `validate:"host"`
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"api.v1.example.com", true},
		{"::1", true},
		{"2001:db8::1", true},
		{"my_server", true},
		{"bad host", false},
		{"bad\thost", false},
		{"bad/host", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := validate.Struct(hostField{Host: tt.host})
			if got := err == nil; got != tt.want {
				t.Errorf("host %q valid = %v, want %v (err: %v)", tt.host, got, tt.want, err)
			}
		})
	}
}

func TestValidateDefinitionGlobs(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		wantErr  bool
	}{
		{"none", nil, false},
		{"plain file", []string{"workflows.yaml"}, false},
		{"doublestar", []string{"defs/**/*.{yaml,yml}"}, false},
		{"unclosed class", []string{"defs/[a-.yaml"}, true},
		{"unclosed alternation", []string{"defs/{a,b.yaml"}, true},
		{"empty pattern", []string{"ok.yaml", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Engine.Definitions = tt.patterns
			err := ValidateWithDetails(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateWithDetails() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var details ValidationErrors
			if !errors.As(err, &details) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if !strings.HasPrefix(details[0].Field, "engine.definitions[") {
				t.Errorf("unexpected field %q", details[0].Field)
			}
		})
	}
}

func TestValidateWithDetails_Keys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RateLimit.Burst = -1
	cfg.App.Environment = "qa"
	cfg.Events.Type = "nats"
	cfg.Events.NATS.URL = ""

	err := ValidateWithDetails(cfg)
	var details ValidationErrors
	if !errors.As(err, &details) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	fields := map[string]string{}
	for _, d := range details {
		fields[d.Field] = d.Message
	}
	for _, key := range []string{"app.environment", "server.rate_limit.burst", "events.nats.url"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected a detail for %s, got %v", key, fields)
		}
	}
	if msg := fields["app.environment"]; msg != "must be one of [development staging production]" {
		t.Errorf("unexpected environment message %q", msg)
	}
}

func TestConfigKey(t *testing.T) {
	if got := configKey("Config.server.port"); got != "server.port" {
		t.Errorf("configKey() = %q", got)
	}
	if got := configKey("port"); got != "port" {
		t.Errorf("configKey() = %q", got)
	}
}
