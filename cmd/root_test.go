package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger-labs/lane-relayer/chains/mock"
	"github.com/hyperledger-labs/lane-relayer/cmd"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/stretchr/testify/require"
)

// run executes the command tree with the given CLI args, restoring
// os.Args afterwards.
func run(t *testing.T, args ...string) error {
	t.Helper()
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = append([]string{"lrly"}, args...)
	return cmd.Execute(mock.Module{})
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()

	require.NoError(t, run(t, "--home", home, "--debug", "config", "init"))

	cfgPath := filepath.Join(home, "config", "config.json")
	_, err := os.Stat(cfgPath)
	require.NoError(t, err)

	// initializing twice against the same home must fail
	require.Error(t, run(t, "--home", home, "config", "init"))
}

// --prometheus-host is accepted as an alias of --prometheus-addr.
func TestRelayMessagesPrometheusHostAlias(t *testing.T) {
	home := t.TempDir()

	// the malformed lane aborts the command before anything is dialed;
	// a broken alias would fail flag parsing first
	err := run(t, "--home", home, "relay-messages", "src-to-dst",
		"--lane", "nothex", "--prometheus-host", "localhost:9199")
	require.ErrorIs(t, err, core.ErrConfiguration)
}
