package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/account-notifier/pkg/config"
)

func TestNewTransport(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Kafka
		wantTLS  bool
		wantSASL bool
		wantErr  string
	}{
		{name: "plaintext", cfg: config.Kafka{}},
		{
			name:    "tls without files",
			cfg:     config.Kafka{TLS: config.KafkaTLS{Enabled: true, InsecureSkipVerify: true}},
			wantTLS: true,
		},
		{
			name:     "sasl plain",
			cfg:      config.Kafka{SASL: config.KafkaSASL{Mechanism: "PLAIN", Username: "u", Password: "p"}},
			wantSASL: true,
		},
		{
			name:     "sasl scram-512",
			cfg:      config.Kafka{SASL: config.KafkaSASL{Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"}},
			wantSASL: true,
		},
		{
			name:    "unsupported sasl",
			cfg:     config.Kafka{SASL: config.KafkaSASL{Mechanism: "GSSAPI"}},
			wantErr: "unsupported SASL mechanism",
		},
		{
			name:    "missing CA file",
			cfg:     config.Kafka{TLS: config.KafkaTLS{Enabled: true, CAFile: "/nonexistent/ca.pem"}},
			wantErr: "failed to read CA certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := NewTransport(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTLS, transport.TLS != nil)
			assert.Equal(t, tt.wantSASL, transport.SASL != nil)

			dialer, err := NewDialer(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTLS, dialer.TLS != nil)
			assert.Equal(t, tt.wantSASL, dialer.SASLMechanism != nil)
		})
	}
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
	assert.Equal(t, kafka.Gzip, compressionCodec("gzip"))
	assert.Equal(t, kafka.Lz4, compressionCodec("lz4"))
	assert.Equal(t, kafka.Zstd, compressionCodec("zstd"))
	assert.Equal(t, kafka.Snappy, compressionCodec("snappy"))
	assert.Equal(t, kafka.Snappy, compressionCodec(""))
}

func TestClassifyKafkaError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "cancelled"},
		{&net.DNSError{Err: "no such host", Name: "kafka"}, "dns"},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, "network"},
		{errors.New("SASL handshake failed"), "auth"},
		{errors.New("topic authorization failed"), "authorization"},
		{errors.New("request timed out"), "timeout"},
		{errors.New("not leader for partition"), "broker"},
		{errors.New("unknown topic or partition"), "topic"},
		{errors.New("x509: certificate signed by unknown authority"), "tls"},
		{errors.New("something else"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyKafkaError(tt.err), "error: %v", tt.err)
	}
}
