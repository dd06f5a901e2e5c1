package config

import (
	"os"
	"strconv"
	"time"

	"gitlab.com/distbuild.net/internal/tcp/defs"
)

type ClusterConfig struct {
	Address           string
	WorkerCount       int
	ResultTimeout     time.Duration
	ConnectRetryDelay time.Duration

	// RegistryRefreshInterval keeps idle workers alive in an expiring registry
	RegistryRefreshInterval time.Duration
}

func NewClusterConfig() *ClusterConfig {
	address := os.Getenv("DBS_ADDRESS")
	if address == "" {
		address = defs.DefaultAddress
	}
	workers, err := strconv.Atoi(os.Getenv("DBS_WORKERS"))
	if err != nil || workers < 0 {
		workers = defs.DefaultWorkerCount
	}
	return &ClusterConfig{
		Address:           address,
		WorkerCount:       workers,
		ResultTimeout:     defs.ResultWaitTimeout,
		ConnectRetryDelay: defs.ConnectRetryDelay,

		RegistryRefreshInterval: defs.RegistryRefreshInterval,
	}
}

type StagingConfig struct {
	Dir string
}

func NewStagingConfig() *StagingConfig {
	dir := os.Getenv("DBS_STAGING_DIR")
	if dir == "" {
		dir = "temp_builds"
	}
	return &StagingConfig{Dir: dir}
}

type CompilerConfig struct {
	Command string
}

func NewCompilerConfig() *CompilerConfig {
	cc := os.Getenv("DBS_CC")
	if cc == "" {
		cc = "gcc"
	}
	return &CompilerConfig{Command: cc}
}

type AdminConfig struct {
	Port int
}

func NewAdminConfig() *AdminConfig {
	port, err := strconv.Atoi(os.Getenv("DBS_ADMIN_PORT"))
	if err != nil {
		port = 0
	}
	return &AdminConfig{Port: port}
}
