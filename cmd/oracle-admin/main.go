package main

import (
	"fmt"
	"os"
)

// Grounded on cmd/rubin-node/main.go's run(args, stdout, stderr) int shape
// and node/keymgr.go's subcommand-switch dispatch (cmdKeymgrMain), merged
// into a single authority-only operator CLI for the protocol's admin
// instructions (§4.8) plus the adapted keystore tooling.

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprintln(os.Stderr, "usage: oracle-admin <subcommand> [flags]")
		fmt.Fprintln(os.Stderr, "subcommands: init-protocol create-market open-epoch finalize-epoch rotate-signer-set set-paused upgrade-admin audit-export keystore")
		return 2
	}
	sub, subargv := argv[0], argv[1:]

	var err error
	switch sub {
	case "init-protocol":
		err = cmdInitProtocol(subargv)
	case "create-market":
		err = cmdCreateMarket(subargv)
	case "open-epoch":
		return runWithOutput("open-epoch", cmdOpenEpoch, subargv)
	case "finalize-epoch":
		err = cmdFinalizeEpoch(subargv)
	case "rotate-signer-set":
		return runWithOutput("rotate-signer-set", cmdRotateSignerSet, subargv)
	case "set-paused":
		err = cmdSetPaused(subargv)
	case "upgrade-admin":
		err = cmdUpgradeAdmin(subargv)
	case "audit-export":
		return runWithOutput("audit-export", cmdAuditExport, subargv)
	case "keystore":
		return cmdKeystoreMain(subargv)
	default:
		fmt.Fprintln(os.Stderr, "unknown subcommand:", sub)
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", sub, err)
		return 1
	}
	fmt.Println("OK")
	return 0
}

// runWithOutput covers subcommands that already print their own success
// output (e.g. "epoch_id=3") instead of a bare "OK".
func runWithOutput(label string, fn func([]string) error, argv []string) int {
	if err := fn(argv); err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", label, err)
		return 1
	}
	return 0
}
