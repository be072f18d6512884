package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

const hyperliquidMainnetURL = "https://api.hyperliquid.xyz"

// NewHyperliquidInfo builds the Hyperliquid info client used for candle
// snapshots. The SDK derives the account address from a private key even for
// read-only queries.
func NewHyperliquidInfo(privateKeyHex string) (*hyperliquid.Info, error) {
	key := privateKeyHex
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, err
	}

	pub := privateKey.Public()
	pubECDSA, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pubECDSA).Hex()

	// build exchange; Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		hyperliquidMainnetURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return ex.Info(), nil
}
