package config

import (
	"os"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	DebugMode      bool
	Cluster        *ClusterConfig
	Staging        *StagingConfig
	Compiler       *CompilerConfig
	Admin          *AdminConfig
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		Cluster:        NewClusterConfig(),
		Staging:        NewStagingConfig(),
		Compiler:       NewCompilerConfig(),
		Admin:          NewAdminConfig(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
	}
}

// LoadEnvFile seeds the environment from an optional dotenv file.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
