package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/example/go-ctcdecode/internal/config"
	"github.com/example/go-ctcdecode/internal/decoder"
)

type nullDecoder struct{}

func (nullDecoder) Decode(_ []float32, _, _ int) ([]decoder.DecoderOutput, error) { return nil, nil }

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "INFO", false},
		{"info", "INFO", false},
		{"DEBUG", "DEBUG", false},
		{"warn", "WARN", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q) = nil error, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	cfg := config.DefaultConfig()

	s := New(cfg, nil)
	if s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v, want 30s", s.shutdownTimeout)
	}

	s.WithShutdownTimeout(5 * time.Second)
	if s.shutdownTimeout != 5*time.Second {
		t.Errorf("shutdownTimeout after override = %v, want 5s", s.shutdownTimeout)
	}
}

func TestResolveDecoder_RejectsUnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Decoder.Backend = "viterbi"

	s := New(cfg, nil)
	if _, err := s.resolveDecoder(); err == nil {
		t.Fatal("resolveDecoder() = nil error, want error for unsupported backend")
	}
}

func TestResolveDecoder_UsesSuppliedDecoderFirst(t *testing.T) {
	cfg := config.DefaultConfig()
	dec := nullDecoder{}

	s := New(cfg, dec)
	got, err := s.resolveDecoder()
	if err != nil {
		t.Fatalf("resolveDecoder() error = %v", err)
	}
	if got != Decoder(dec) {
		t.Error("resolveDecoder() did not return the supplied decoder")
	}
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr
	cfg.Decoder.Backend = config.DecoderBackendGreedy

	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	var probeErr error
	for i := 0; i < 50; i++ {
		probeErr = ProbeHTTP(addr)
		if probeErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if probeErr != nil {
		t.Fatalf("ProbeHTTP never succeeded: %v", probeErr)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not shut down in time")
	}
}
