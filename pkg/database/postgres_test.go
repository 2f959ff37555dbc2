package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/vacation-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "vacation",
		Password: "secret",
		Name:     "leave",
		SSLMode:  "disable",
	})

	assert.Equal(t, "host=db port=5433 user=vacation password=secret dbname=leave sslmode=disable", dsn)
}

func TestDSNQuotesAwkwardValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "vacation",
		Password: `it's a secret`,
		Name:     "leave",
		SSLMode:  "require",
	})

	assert.Equal(t, `host=db port=5432 user=vacation password='it\'s a secret' dbname=leave sslmode=require`, dsn)
}

func TestDSNQuotesEmptyPassword(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "n", SSLMode: "disable"})
	assert.Contains(t, dsn, "password='' ")
}
