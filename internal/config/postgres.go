package config

import "os"

type PostgresConfig struct {
	Url string
}

// Enabled reports whether build history should be archived
func (c *PostgresConfig) Enabled() bool {
	return c != nil && c.Url != ""
}

func NewPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Url: os.Getenv("DATABASE_URL"),
	}
}
