package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "tours",
		Password: "p@ss word",
		DBName:   "bookings",
	}

	assert.Equal(t, "host=db port=5432 user=tours password=p@ss word dbname=bookings sslmode=disable TimeZone=UTC", cfg.DSN())
	assert.Equal(t, "postgres://tours:p%40ss%20word@db:5432/bookings?sslmode=disable", cfg.DatabaseURL())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DatabaseURL(), "sslmode=require")
}
