package protocol

import "crypto/sha256"

// Address is a derived program-address: the deterministic identifier every
// record is keyed by. Two records collide only if their seed tuples
// collide (§4.4).
type Address [32]byte

func deriveAddress(seeds ...[]byte) Address {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// ProtocolAddress is the singleton ProtocolConfig address.
func ProtocolAddress() Address {
	return deriveAddress([]byte("protocol"))
}

// MarketAddress derives a Market's address from its market_id.
func MarketAddress(marketID string) Address {
	return deriveAddress([]byte("market"), []byte(marketID))
}

// EpochAddress derives an Epoch's address from its market address and epoch id.
func EpochAddress(marketAddr Address, epochID uint64) Address {
	return deriveAddress([]byte("epoch"), marketAddr[:], leU64(epochID))
}

// CommitAddress derives a CommitRecord's address from its epoch address and committer.
func CommitAddress(epochAddr Address, committer string) Address {
	return deriveAddress([]byte("commit"), epochAddr[:], []byte(committer))
}

// SignerSetAddress derives a SignerSet's address from its id.
func SignerSetAddress(signerSetID uint64) Address {
	return deriveAddress([]byte("signer_set"), leU64(signerSetID))
}

// AuditAddress derives an AuditLog's address from its epoch address.
func AuditAddress(epochAddr Address) Address {
	return deriveAddress([]byte("audit"), epochAddr[:])
}

func leU64(v uint64) []byte {
	return AppendU64le(nil, v)
}
