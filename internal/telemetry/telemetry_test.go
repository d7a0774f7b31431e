package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatal("providers should not be nil")
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
		}
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(context.Background(), endpoint, "test-service", false, zerolog.Nop()); err == nil {
			t.Errorf("NewProviders(%q) should return error", endpoint)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		override bool
		host     string
		insecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://localhost:4317", false, "localhost:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
		{"http://localhost:4317/v1/traces", false, "localhost:4317", true},
	}
	for _, tt := range tests {
		got, err := ParseEndpoint(tt.endpoint, tt.override)
		if err != nil {
			t.Fatalf("ParseEndpoint(%q): %v", tt.endpoint, err)
		}
		if got.HostPort != tt.host || got.Insecure != tt.insecure {
			t.Errorf("ParseEndpoint(%q, %v) = %+v, want %s insecure=%v", tt.endpoint, tt.override, got, tt.host, tt.insecure)
		}
	}
	if _, err := ParseEndpoint("", false); err == nil {
		t.Error("empty endpoint should fail")
	}
}

func TestSetGlobal(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "test-service", false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	providers.SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("TracerProvider should be the global provider")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("MeterProvider should be the global provider")
	}
}
