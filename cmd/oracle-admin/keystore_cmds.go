package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/oracleprotocol/publisher/cryptosig"
)

// Adapted from node/keymgr.go's export-wrapped/import-wrapped/verify-pubkey
// trio: same RBKSv1 keystore envelope and AES-256-KW wrap, retargeted from
// post-quantum secret keys to Ed25519 seeds. The teacher's wolfcrypt-strict
// shim path is dropped — this module has no hardware keywrap provider to
// fall back from, only the software AES-KW path the teacher used for
// dev/test environments.

func hexDecodeStrict(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func cmdKeystoreGenerate(argv []string) error {
	fs := flag.NewFlagSet("keystore generate", flag.ExitOnError)
	out := fs.String("out", "", "output keystore json path")
	kekHex := fs.String("kek-hex", "", "AES-256 KEK (32 bytes hex) to wrap the new key under")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *out == "" || *kekHex == "" {
		return fmt.Errorf("missing required flags: --out --kek-hex")
	}
	kek, err := hexDecodeStrict(*kekHex)
	if err != nil {
		return fmt.Errorf("kek-hex: %w", err)
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	ks, err := cryptosig.WrapKeystore(kek, pub, priv.Seed())
	if err != nil {
		return err
	}
	return writeKeystore(*out, ks)
}

func cmdKeystoreExportWrapped(argv []string) error {
	fs := flag.NewFlagSet("keystore export-wrapped", flag.ExitOnError)
	out := fs.String("out", "", "output keystore json path")
	seedHex := fs.String("seed-hex", "", "ed25519 seed bytes (hex, 32 bytes) to wrap (dev only)")
	kekHex := fs.String("kek-hex", "", "AES-256 KEK (32 bytes hex)")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *out == "" || *seedHex == "" || *kekHex == "" {
		return fmt.Errorf("missing required flags: --out --seed-hex --kek-hex")
	}
	seed, err := hexDecodeStrict(*seedHex)
	if err != nil {
		return fmt.Errorf("seed-hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("seed must be %d bytes (got %d)", ed25519.SeedSize, len(seed))
	}
	kek, err := hexDecodeStrict(*kekHex)
	if err != nil {
		return fmt.Errorf("kek-hex: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	ks, err := cryptosig.WrapKeystore(kek, pub, seed)
	if err != nil {
		return err
	}
	return writeKeystore(*out, ks)
}

func readKeystore(path string) (*cryptosig.KeystoreV1, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-provided
	if err != nil {
		return nil, err
	}
	var ks cryptosig.KeystoreV1
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, err
	}
	return &ks, nil
}

func writeKeystore(path string, ks cryptosig.KeystoreV1) error {
	b, err := json.Marshal(ks)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

func cmdKeystoreImportWrapped(argv []string) error {
	fs := flag.NewFlagSet("keystore import-wrapped", flag.ExitOnError)
	in := fs.String("in", "", "input keystore json path")
	out := fs.String("out", "", "output keystore json path")
	oldKekHex := fs.String("old-kek-hex", "", "old AES-256 KEK (32 bytes hex)")
	newKekHex := fs.String("new-kek-hex", "", "new AES-256 KEK (32 bytes hex)")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *in == "" || *out == "" || *oldKekHex == "" || *newKekHex == "" {
		return fmt.Errorf("missing required flags: --in --out --old-kek-hex --new-kek-hex")
	}
	ks, err := readKeystore(*in)
	if err != nil {
		return err
	}
	oldKek, err := hexDecodeStrict(*oldKekHex)
	if err != nil {
		return fmt.Errorf("old-kek-hex: %w", err)
	}
	newKek, err := hexDecodeStrict(*newKekHex)
	if err != nil {
		return fmt.Errorf("new-kek-hex: %w", err)
	}
	priv, err := cryptosig.UnwrapKeystore(oldKek, *ks)
	if err != nil {
		return fmt.Errorf("unwrap with old kek: %w", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	newKs, err := cryptosig.WrapKeystore(newKek, pub, priv.Seed())
	if err != nil {
		return err
	}
	return writeKeystore(*out, newKs)
}

func cmdKeystoreVerifyPubkey(argv []string) (string, error) {
	fs := flag.NewFlagSet("keystore verify-pubkey", flag.ExitOnError)
	in := fs.String("in", "", "input keystore json path")
	expectedKeyIDHex := fs.String("expected-key-id-hex", "", "optional expected key_id hex")
	if err := fs.Parse(argv); err != nil {
		return "", err
	}
	if *in == "" {
		return "", fmt.Errorf("missing required flag: --in")
	}
	ks, err := readKeystore(*in)
	if err != nil {
		return "", err
	}
	pub, err := hexDecodeStrict(ks.PubkeyHex)
	if err != nil {
		return "", fmt.Errorf("pubkey_hex: %w", err)
	}
	keyID := cryptosig.KeyID(pub)
	gotHex := hex.EncodeToString(keyID[:])
	if ks.KeyIDHex != "" && gotHex != ks.KeyIDHex {
		return "", fmt.Errorf("keystore key_id mismatch: embedded=%s computed=%s", ks.KeyIDHex, gotHex)
	}
	if *expectedKeyIDHex != "" && *expectedKeyIDHex != gotHex {
		return "", fmt.Errorf("expected key_id mismatch: expected=%s computed=%s", *expectedKeyIDHex, gotHex)
	}
	return gotHex, nil
}

func cmdKeystoreMain(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprintln(os.Stderr, "usage: oracle-admin keystore <generate|export-wrapped|import-wrapped|verify-pubkey> [flags]")
		return 2
	}
	sub, subargv := argv[0], argv[1:]
	switch sub {
	case "generate":
		if err := cmdKeystoreGenerate(subargv); err != nil {
			fmt.Fprintln(os.Stderr, "keystore generate error:", err)
			return 1
		}
		fmt.Println("OK")
		return 0
	case "export-wrapped":
		if err := cmdKeystoreExportWrapped(subargv); err != nil {
			fmt.Fprintln(os.Stderr, "keystore export-wrapped error:", err)
			return 1
		}
		fmt.Println("OK")
		return 0
	case "import-wrapped":
		if err := cmdKeystoreImportWrapped(subargv); err != nil {
			fmt.Fprintln(os.Stderr, "keystore import-wrapped error:", err)
			return 1
		}
		fmt.Println("OK")
		return 0
	case "verify-pubkey":
		out, err := cmdKeystoreVerifyPubkey(subargv)
		if err != nil {
			fmt.Fprintln(os.Stderr, "keystore verify-pubkey error:", err)
			return 1
		}
		fmt.Println(out)
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown keystore subcommand:", sub)
		return 2
	}
}
