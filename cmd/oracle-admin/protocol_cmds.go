package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/oracleprotocol/publisher/cryptosig"
	"github.com/oracleprotocol/publisher/protocol"
	"github.com/oracleprotocol/publisher/protocol/store"
)

// Authority-only protocol operations, adapted from node/keymgr.go's
// subcommand-per-verb shape into calls against *protocol.Engine instead of
// keystore file manipulation. Every subcommand opens the bbolt store fresh
// and exits; there is no long-running daemon here (that's cmd/oracle-publisher).

func openEngine(dataDir, env string, logger log.Logger) (*protocol.Engine, *store.DB, error) {
	db, err := store.Open(dataDir, env)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	emit := func(ev protocol.Event) {
		logger.Info("event", "name", fmt.Sprintf("%T", ev))
	}
	return protocol.NewEngine(db, cryptosig.Ed25519Verifier{}, emit), db, nil
}

func nowSlot() uint64 {
	return uint64(time.Now().Unix())
}

func commonAdminFlags(fs *flag.FlagSet) (dataDir, env, caller *string) {
	dataDir = fs.String("datadir", "", "protocol data directory")
	env = fs.String("network", "devnet", "network name (devnet/testnet/mainnet)")
	caller = fs.String("caller", "", "caller identity (must equal protocol authority for restricted ops)")
	return
}

func cmdInitProtocol(argv []string) error {
	fs := flag.NewFlagSet("init-protocol", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	delaySlots := fs.Uint64("default-reveal-delay-slots", 0, "default reveal delay in slots")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" {
		return fmt.Errorf("missing required flags: --datadir --caller")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return e.InitProtocol(*caller, *delaySlots, nowSlot())
}

func cmdCreateMarket(argv []string) error {
	fs := flag.NewFlagSet("create-market", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	marketID := fs.String("market-id", "", "market id")
	domain := fs.String("domain", "", "domain: Sports|Politics|Macro|Crypto|Custom")
	outcomesCSV := fs.String("outcomes", "", "comma-separated outcome ids")
	active := fs.Bool("active", true, "market starts active")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" || *marketID == "" || *domain == "" || *outcomesCSV == "" {
		return fmt.Errorf("missing required flags: --datadir --caller --market-id --domain --outcomes")
	}
	outcomes := strings.Split(*outcomesCSV, ",")
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return e.CreateMarket(*caller, *marketID, protocol.Domain(*domain), outcomes, *active, nowSlot())
}

func cmdOpenEpoch(argv []string) error {
	fs := flag.NewFlagSet("open-epoch", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	marketID := fs.String("market-id", "", "market id")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" || *marketID == "" {
		return fmt.Errorf("missing required flags: --datadir --caller --market-id")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	epochID, err := e.OpenEpoch(*caller, *marketID, nowSlot())
	if err != nil {
		return err
	}
	fmt.Printf("epoch_id=%d\n", epochID)
	return nil
}

func cmdFinalizeEpoch(argv []string) error {
	fs := flag.NewFlagSet("finalize-epoch", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	marketID := fs.String("market-id", "", "market id")
	epochID := fs.Uint64("epoch-id", 0, "epoch id")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" || *marketID == "" {
		return fmt.Errorf("missing required flags: --datadir --caller --market-id")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return e.FinalizeEpoch(*caller, *marketID, *epochID, nowSlot())
}

func cmdRotateSignerSet(argv []string) error {
	fs := flag.NewFlagSet("rotate-signer-set", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	threshold := fs.Int("threshold", 1, "signature threshold")
	pubkeysCSV := fs.String("pubkeys-hex", "", "comma-separated 32-byte pubkeys (hex)")
	active := fs.Bool("active", true, "signer set starts active")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" || *pubkeysCSV == "" {
		return fmt.Errorf("missing required flags: --datadir --caller --pubkeys-hex")
	}
	var pubkeys [][32]byte
	for _, h := range strings.Split(*pubkeysCSV, ",") {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil || len(b) != 32 {
			return fmt.Errorf("bad pubkey hex %q: must decode to 32 bytes", h)
		}
		var arr [32]byte
		copy(arr[:], b)
		pubkeys = append(pubkeys, arr)
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	id, err := e.RotateSignerSet(*caller, *threshold, pubkeys, *active, nowSlot())
	if err != nil {
		return err
	}
	fmt.Printf("signer_set_id=%d\n", id)
	return nil
}

func cmdSetPaused(argv []string) error {
	fs := flag.NewFlagSet("set-paused", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	paused := fs.Bool("paused", true, "desired paused state")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" {
		return fmt.Errorf("missing required flags: --datadir --caller")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return e.SetPaused(*caller, *paused, nowSlot())
}

// cmdAuditExport dumps every audit log record in the store to a
// digest-stamped JSON file, for off-chain retention or dispute review.
func cmdAuditExport(argv []string) error {
	fs := flag.NewFlagSet("audit-export", flag.ExitOnError)
	dataDir, env, _ := commonAdminFlags(fs)
	out := fs.String("out", "", "output path for the exported audit log")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *out == "" {
		return fmt.Errorf("missing required flags: --datadir --out")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()

	exp, err := e.ExportAuditLog()
	if err != nil {
		return fmt.Errorf("export audit log: %w", err)
	}
	b, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit export: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(*out, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("exported %d audit record(s) to %s\n", len(exp.Records), *out)
	return nil
}

func cmdUpgradeAdmin(argv []string) error {
	fs := flag.NewFlagSet("upgrade-admin", flag.ExitOnError)
	dataDir, env, caller := commonAdminFlags(fs)
	newAuthority := fs.String("new-authority", "", "new authority identity")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *dataDir == "" || *caller == "" || *newAuthority == "" {
		return fmt.Errorf("missing required flags: --datadir --caller --new-authority")
	}
	e, db, err := openEngine(*dataDir, *env, log.NewNopLogger())
	if err != nil {
		return err
	}
	defer db.Close()
	return e.UpgradeAdmin(*caller, *newAuthority)
}
