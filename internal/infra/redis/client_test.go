package redis

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
)

func settingsFor(t *testing.T, addr string) config.RedisSettings {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return config.RedisSettings{Host: host, Port: port}
}

func TestNewClientPingsServer(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewClient(settingsFor(t, server.Addr()), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once the server is gone")
	}
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	settings := settingsFor(t, server.Addr())
	server.Close()

	if _, err := NewClient(settings, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}
