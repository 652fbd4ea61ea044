package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"

	"github.com/oracleprotocol/publisher/cryptosig"
	"github.com/oracleprotocol/publisher/protocol"
	"github.com/oracleprotocol/publisher/protocol/store"
	"github.com/oracleprotocol/publisher/publisher"
)

// Grounded on cmd/rubin-node/main.go's run(args, stdout, stderr) int shape:
// flag parsing into a config struct, a --dry-run that prints effective
// config and exits, a signal.NotifyContext-driven main loop. Exit codes
// follow the protocol's CLI contract (0 clean shutdown, 1 fatal config/io
// error, 2 unrecoverable runtime failure) rather than the teacher's own
// convention, which the spec inverts.

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("oracle-publisher", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "path to publisher config YAML")
	marketID := fs.String("market-id", "", "market this daemon publishes for")
	committer := fs.String("committer", "publisher", "committer identity used for commit_prediction/reveal_prediction")
	signerSetID := fs.Uint64("signer-set-id", 1, "active signer_set_id to bundle and sign against")
	confidenceBps := fs.Uint("confidence-bps", 9500, "confidence level in bps for the Wilson interval")
	kekHex := fs.String("kek-hex", "", "AES-256 KEK (32 bytes hex) to unwrap the signer keystore")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *configPath == "" || *marketID == "" {
		fmt.Fprintln(stderr, "missing required flags: --config --market-id")
		return 1
	}

	cfg, err := publisher.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config load failed: %v\n", err)
		return 1
	}
	if err := publisher.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	if err := printConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	signerDevice, err := loadSignerDevice(cfg, *kekHex)
	if err != nil {
		fmt.Fprintf(stderr, "signer device load failed: %v\n", err)
		return 1
	}

	db, err := store.Open(cfg.Engine.DataDir, cfg.Env)
	if err != nil {
		fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 1
	}
	defer db.Close()

	logger := log.NewLogger(stdout)
	engine := protocol.NewEngine(db, cryptosig.Ed25519Verifier{}, func(ev protocol.Event) {
		logger.Info("event", "name", fmt.Sprintf("%T", ev))
	})

	queue := publisher.NewIngestQueue(cfg.Engine.IngestQueueSize)
	loop := publisher.NewTickLoop(
		cfg.Engine, engine, queue, publisher.Normalize, signerDevice,
		publisher.NewReplayState(), logger, *marketID, *committer,
		*signerSetID, uint32(*confidenceBps),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(stdout, "oracle-publisher running")
	if err := loop.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "tick loop failed: %v\n", err)
		return 2
	}
	fmt.Fprintln(stdout, "oracle-publisher stopped")
	return 0
}

func loadSignerDevice(cfg publisher.Config, kekHex string) (publisher.SignerDevice, error) {
	if cfg.Signer.Keyring == "" {
		return nil, fmt.Errorf("signer.keyring not configured")
	}
	if kekHex == "" {
		return nil, fmt.Errorf("--kek-hex required to unwrap signer.keyring")
	}
	kek, err := hex.DecodeString(kekHex)
	if err != nil {
		return nil, fmt.Errorf("kek-hex: %w", err)
	}
	raw, err := os.ReadFile(cfg.Signer.Keyring) // #nosec G304 -- operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	var ks cryptosig.KeystoreV1
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, fmt.Errorf("parse keyring: %w", err)
	}
	priv, err := cryptosig.UnwrapKeystore(kek, ks)
	if err != nil {
		return nil, fmt.Errorf("unwrap keyring: %w", err)
	}
	return publisher.NewLocalSignerDevice([]ed25519.PrivateKey{priv}, nil), nil
}

func printConfig(w io.Writer, cfg publisher.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
