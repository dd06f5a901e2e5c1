package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/distbuild.net/internal/config"
)

func defaults() *config.AppConfig {
	return &config.AppConfig{Cluster: &config.ClusterConfig{Address: "127.0.0.1:9000", WorkerCount: 4}}
}

func TestParseBuild(t *testing.T) {
	cfg := defaults()
	inv, err := Parse([]string{"build", "a.c", "--workers", "2", "b.c", "--address=0.0.0.0:7000"}, cfg)
	require.NoError(t, err)

	require.Equal(t, CommandBuild, inv.Command)
	require.Equal(t, []string{"a.c", "b.c"}, inv.Files)
	require.Equal(t, 2, cfg.Cluster.WorkerCount)
	require.Equal(t, "0.0.0.0:7000", cfg.Cluster.Address)
}

func TestParseKeepsConfigWhenFlagsAbsent(t *testing.T) {
	cfg := defaults()
	inv, err := Parse([]string{"serve"}, cfg)
	require.NoError(t, err)

	require.Equal(t, CommandServe, inv.Command)
	require.Equal(t, 4, cfg.Cluster.WorkerCount)
	require.Equal(t, "127.0.0.1:9000", cfg.Cluster.Address)
}

func TestParseSubmitAndWorker(t *testing.T) {
	cfg := defaults()
	inv, err := Parse([]string{"submit", "--server", "10.0.0.1:9000", "x.c"}, cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"x.c"}, inv.Files)
	require.Equal(t, "10.0.0.1:9000", cfg.Cluster.Address)

	cfg = defaults()
	inv, err = Parse([]string{"worker", "3", "--address", "127.0.0.1:9100"}, cfg)
	require.NoError(t, err)
	require.Equal(t, "3", inv.WorkerID)
	require.Equal(t, "127.0.0.1:9100", cfg.Cluster.Address)
}

func TestParseRejectsBadInvocations(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"deploy"},
		{"worker"},
		{"serve", "a.c"},
		{"build", "--workers", "many"},
		{"build", "--workers", "-1", "a.c"},
	} {
		_, err := Parse(args, defaults())
		require.ErrorIs(t, err, ErrUsage, "args %v", args)
	}
}
