package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"os"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/GPTx-global/flightsurety/dapp"
	"github.com/GPTx-global/flightsurety/oracle/client"
	"github.com/GPTx-global/flightsurety/oracle/client/clienttest"
	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// fakeContracts opens every contract over the same in-memory backend.
func fakeContracts(t *testing.T, backend *clienttest.Backend) contractFactory {
	return func(ctx context.Context, cfg *config.Config, name string) (*dapp.Contract, error) {
		network, err := cfg.Network(name)
		if err != nil {
			return nil, err
		}
		accounts, err := client.NewAccounts(cfg.Key.Mnemonic, 11)
		require.NoError(t, err)

		clt, err := client.NewClient(ctx, backend, network, accounts, client.Options{})
		if err != nil {
			return nil, err
		}
		return dapp.New(clt)
	}
}

func execute(t *testing.T, backend *clienttest.Backend, args ...string) (string, error) {
	rootCmd := newRootCmd(fakeContracts(t, backend))
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs(append(args, "--home", t.TempDir()))

	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuyCmd(t *testing.T) {
	backend := clienttest.NewBackend()

	out, err := execute(t, backend, "buy", "ND1309", "--value", "0.5", "--timestamp", "1700000000", "--format", "json")
	require.NoError(t, err)

	require.Equal(t, "Buy", gjson.Get(out, "title").String())
	require.Equal(t, "Buy insurance", gjson.Get(out, "results.0.label").String())
	require.Equal(t, "ND1309 1700000000", gjson.Get(out, "results.0.value").String())

	sent := backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, 0, big.NewInt(5e17).Cmp(sent[0].Value()))
}

func TestBuyCmdReverted(t *testing.T) {
	backend := clienttest.NewBackend()
	backend.SetSendError(errors.New("execution reverted"))

	out, err := execute(t, backend, "buy", "ND1309", "--timestamp", "1700000000")
	require.Error(t, err)
	require.True(t, errorsmod.IsOf(err, types.ErrRevert))
	require.Contains(t, err.Error(), "Buy insurance")

	// the failed row is still displayed
	require.Regexp(t, `Buy insurance\s+.*transaction reverted`, out)
}

func TestJSONOutputOnStdout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	rootCmd := newRootCmd(fakeContracts(t, clienttest.NewBackend()))
	rootCmd.SetArgs([]string{"buy", "ND1309", "--format", "json", "--log-level", "debug", "--home", t.TempDir()})
	execErr := rootCmd.Execute()

	require.NoError(t, w.Close())
	os.Stdout = stdout

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, execErr)
	require.True(t, gjson.Valid(string(out)), "stdout is not a JSON document: %s", out)
	require.Equal(t, "Buy", gjson.GetBytes(out, "title").String())
}

func TestOperationalCmd(t *testing.T) {
	backend := clienttest.NewBackend()

	dataABI, err := client.LoadABI("", client.FlightSuretyDataABI)
	require.NoError(t, err)
	m := dataABI.Methods[client.MethodIsOperational]
	packed, err := m.Outputs.Pack(true)
	require.NoError(t, err)
	backend.SetOutput(m.ID, packed)

	out, err := execute(t, backend, "operational")
	require.NoError(t, err)
	require.Contains(t, out, "Check if contract is operational")
	require.Regexp(t, `Operational Status\s+true`, out)
	require.Regexp(t, `Data Operational Status\s+true`, out)
}

func TestRejectsBadArguments(t *testing.T) {
	backend := clienttest.NewBackend()

	_, err := execute(t, backend, "register-airline", "not-an-address", "Second Air")
	require.Error(t, err)

	_, err = execute(t, backend, "fund", "lots")
	require.Error(t, err)

	_, err = execute(t, backend, "set-operational", "maybe")
	require.Error(t, err)

	require.Empty(t, backend.Sent())
}

func TestEtherValue(t *testing.T) {
	testCases := []struct {
		name string
		raw  any
		want *big.Int
	}{
		{"empty", "", big.NewInt(0)},
		{"one", "1", big.NewInt(1e18)},
		{"fraction", "1.1", big.NewInt(11e17)},
		{"wei", "0.000000000000000001", big.NewInt(1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := etherValue(tc.raw)
			require.NoError(t, err)
			require.Equal(t, 0, tc.want.Cmp(got))
		})
	}
}
