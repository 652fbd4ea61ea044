package publisher

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/oracleprotocol/publisher/cryptosig"
)

// SignerDevice is the external collaborator of §6: "given a 32-byte
// sig_message, returns a threshold-quorum of 64-byte signatures; rejects if
// no active set." The publisher depends only on this narrow interface, not
// on any particular key-custody mechanism.
type SignerDevice interface {
	Sign(ctx context.Context, message [32]byte) ([]cryptosig.SigCheck, error)
}

// LocalSignerDevice signs directly with in-memory Ed25519 keys, gated by a
// SignerMonitor health check when a monitor is given. This is the
// implementation used by cmd/oracle-publisher and the tick loop tests; a
// production deployment would instead speak to an HSM or a remote signing
// service behind the same interface.
type LocalSignerDevice struct {
	keys    []ed25519.PrivateKey
	monitor *cryptosig.SignerMonitor
}

func NewLocalSignerDevice(keys []ed25519.PrivateKey, monitor *cryptosig.SignerMonitor) *LocalSignerDevice {
	return &LocalSignerDevice{keys: keys, monitor: monitor}
}

func (d *LocalSignerDevice) Sign(ctx context.Context, message [32]byte) ([]cryptosig.SigCheck, error) {
	if d.monitor != nil && !d.monitor.CanSign() {
		return nil, fmt.Errorf("signer device: no active signer set")
	}
	if len(d.keys) == 0 {
		return nil, fmt.Errorf("signer device: no keys configured")
	}
	sigs := make([]cryptosig.SigCheck, 0, len(d.keys))
	for _, k := range d.keys {
		var pub [32]byte
		copy(pub[:], k.Public().(ed25519.PublicKey))
		var sig [64]byte
		copy(sig[:], ed25519.Sign(k, message[:]))
		sigs = append(sigs, cryptosig.SigCheck{Pubkey: pub, Signature: sig})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	return sigs, nil
}
