package util

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature builds the canonical ABI signature, e.g. "transfer(address,uint256)".
func Signature(name string, paramTypes []string) string {
	canon := make([]string, 0, len(paramTypes))
	for _, t := range paramTypes {
		canon = append(canon, CanonicalType(t))
	}
	return name + "(" + strings.Join(canon, ",") + ")"
}

// Selector returns the 4-byte function selector of the signature as 0x-hex.
func Selector(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

// CanonicalType normalises a Solidity parameter type for ABI signatures:
// data locations and "payable" are dropped, uint/int widen to 256 bits.
func CanonicalType(t string) string {
	var kept []string
	for _, f := range strings.Fields(t) {
		switch f {
		case "memory", "calldata", "storage", "payable", "indexed":
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return ""
	}
	base := kept[0]
	suffix := ""
	if i := strings.Index(base, "["); i >= 0 {
		base, suffix = base[:i], base[i:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	case "byte":
		base = "bytes1"
	}
	return base + suffix
}
