package database

import (
	"testing"
	"time"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
)

func TestPoolConfigEscapesCredentials(t *testing.T) {
	pc, err := poolConfig(config.PostgresSettings{
		Host:     "db.internal",
		Port:     6432,
		User:     "registrar",
		Password: "p@ss:w/rd",
		Database: "crm",
		SSLMode:  "disable",
		MaxConns: 12,
	})
	if err != nil {
		t.Fatalf("poolConfig returned error: %v", err)
	}

	conn := pc.ConnConfig
	if conn.Host != "db.internal" || conn.Port != 6432 {
		t.Fatalf("unexpected address %s:%d", conn.Host, conn.Port)
	}
	if conn.Password != "p@ss:w/rd" {
		t.Fatalf("password not preserved: %q", conn.Password)
	}
	if conn.Database != "crm" {
		t.Fatalf("unexpected database %q", conn.Database)
	}
	if pc.MaxConns != 12 {
		t.Fatalf("unexpected max conns %d", pc.MaxConns)
	}
	if got := conn.RuntimeParams["search_path"]; got != "auth,public" {
		t.Fatalf("unexpected search_path %q", got)
	}
}

func TestPoolConfigCustomSchemaAndLimits(t *testing.T) {
	pc, err := poolConfig(config.PostgresSettings{
		Host:            "localhost",
		Port:            5432,
		User:            "u",
		Database:        "crm",
		Schema:          "registration",
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		t.Fatalf("poolConfig returned error: %v", err)
	}
	if got := pc.ConnConfig.RuntimeParams["search_path"]; got != "registration,public" {
		t.Fatalf("unexpected search_path %q", got)
	}
	if pc.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected lifetime %v", pc.MaxConnLifetime)
	}
}
