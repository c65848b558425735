package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
)

// Exporter protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	ServiceName    string
	ServiceVersion string
	// Insecure disables TLS. Only allowed for local endpoints.
	Insecure        bool
	SamplingRate    float64
	MetricsEnabled  bool
	ExportInterval  time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns disabled telemetry with local-collector defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		ServiceName:     "syllabusd",
		ServiceVersion:  "dev",
		Insecure:        true,
		SamplingRate:    1.0,
		MetricsEnabled:  true,
		ExportInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromObservability builds a Config from the observability section of the
// daemon configuration.
func FromObservability(o config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = o.EnableTelemetry
	cfg.Insecure = o.Insecure
	cfg.SamplingRate = o.SamplingRate
	if o.OTLPEndpoint != "" {
		cfg.Endpoint = o.OTLPEndpoint
	}
	if o.OTLPProtocol != "" {
		cfg.Protocol = o.OTLPProtocol
	}
	if o.ServiceName != "" {
		cfg.ServiceName = o.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks configuration for errors. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("insecure connections are only allowed to local endpoints, got %q", c.Endpoint)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	if c.MetricsEnabled && c.ExportInterval <= 0 {
		return fmt.Errorf("export interval must be positive when metrics are enabled")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether endpoint names a loopback host. It accepts
// host:port, bare hosts, bracketed IPv6 and http(s) URLs.
func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https:// from an endpoint URL. The OTLP
// exporters expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
