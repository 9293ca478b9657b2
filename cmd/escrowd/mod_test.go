package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/crypto/ed25519"
)

func TestEscrowd_Scenario(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "node")

	sigs := make(chan os.Signal)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()

		err := runWithCfg([]string{os.Args[0], "--config", node, "start"},
			config{Channel: sigs, Writer: io.Discard})
		require.NoError(t, err)
	}()

	defer func() {
		// Simulate a Ctrl+C
		close(sigs)
		wg.Wait()
	}()

	waitDaemon(t, node)

	buyerKey := filepath.Join(dir, "buyer.key")
	merchantKey := filepath.Join(dir, "merchant.key")
	minterKey := filepath.Join(node, "minter.key")

	require.NoError(t, run([]string{os.Args[0], "signer", "new", "--save", buyerKey}))
	require.NoError(t, run([]string{os.Args[0], "signer", "new", "--save", merchantKey}))

	buyer := hexKey(t, buyerKey)
	merchant := hexKey(t, merchantKey)

	exec(t, node, "token", "mint", "--key", minterKey, "--to", buyer, "--amount", "100")
	exec(t, node, "token", "approve", "--key", buyerKey, "--amount", "100")

	// Not enough funds.
	err := runWithCfg([]string{os.Args[0], "--config", node, "ledger", "lock",
		"--key", buyerKey, "--merchant", merchant, "--amount", "1000"},
		config{Writer: io.Discard})
	require.Error(t, err)
	require.Contains(t, err.Error(), "transaction rejected: failed to LOCK")

	exec(t, node, "ledger", "lock", "--key", buyerKey, "--merchant", merchant, "--amount", "100")

	require.Equal(t, "100", exec(t, node, "ledger", "locked", "--buyer", buyer, "--merchant", merchant))
	require.Equal(t, "0", exec(t, node, "token", "balance", "--identity", buyer))

	exec(t, node, "ledger", "release", "--key", buyerKey, "--merchant", merchant)

	require.Equal(t, "0", exec(t, node, "ledger", "locked", "--buyer", buyer, "--merchant", merchant))
	require.Equal(t, "100", exec(t, node, "ledger", "claimable", "--merchant", merchant))

	exec(t, node, "ledger", "claim", "--key", merchantKey)

	require.Equal(t, "0", exec(t, node, "ledger", "claimable", "--merchant", merchant))
	require.Equal(t, "100", exec(t, node, "token", "balance", "--identity", merchant))
	// approve, the rejected lock, lock and release.
	require.Equal(t, "4", exec(t, node, "ordering", "nonce", "--identity", buyer))

	out := exec(t, node, "proxy", "start", "--clientaddr", "127.0.0.1:0")
	addr := strings.TrimPrefix(out, "started proxy server on ")

	resp, err := http.Get("http://" + addr + "/token/balance/" + merchant)
	require.NoError(t, err)

	defer resp.Body.Close()

	var balance struct {
		Amount string `json:"amount"`
	}

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
	require.Equal(t, "100", balance.Amount)
}

func TestEscrowd_BadCommand(t *testing.T) {
	err := runWithCfg([]string{os.Args[0], "ledger", "lock"}, config{Writer: io.Discard})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Required flags")
}

// -----------------------------------------------------------------------------
// Utility functions

func exec(t *testing.T, node string, args ...string) string {
	buffer := new(bytes.Buffer)

	err := runWithCfg(append([]string{os.Args[0], "--config", node}, args...),
		config{Writer: buffer})
	require.NoError(t, err, buffer.String())

	return strings.TrimSpace(buffer.String())
}

func hexKey(t *testing.T, path string) string {
	signer, err := ed25519.LoadSigner(path)
	require.NoError(t, err)

	data, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	return hex.EncodeToString(data)
}

func waitDaemon(t *testing.T, node string) {
	num := 50

	for i := 0; i < num; i++ {
		_, err := os.Stat(filepath.Join(node, "daemon.sock"))
		if !os.IsNotExist(err) {
			conn, err := net.Dial("unix", filepath.Join(node, "daemon.sock"))
			if err == nil {
				conn.Close()
				return
			}
		}

		time.Sleep(30 * time.Millisecond)
	}

	t.Fatal("timeout")
}
