// sign-order is a small CLI that generates (or loads) a key, signs a
// place-order message, and prints the JSON body ready to POST to the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jwhyun/limitbook/params"
	"github.com/jwhyun/limitbook/pkg/crypto"
)

func main() {
	var (
		keyHex = flag.String("key", "", "private key hex (omit to generate a fresh one)")
		pairID = flag.String("pair", "", "pair id (0x-prefixed 32-byte hex)")
		side   = flag.String("side", "buy", "buy or sell")
		tif    = flag.String("tif", "GTC", "GTC or IOC")
		price  = flag.Int64("price", 100, "limit price in quote ticks")
		amount = flag.Int64("amount", 10, "amount in base lots")
		nonce  = flag.Uint64("nonce", 1, "account nonce (GET /api/v1/accounts/{addr}/nonce)")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "key: %v\n", err)
		os.Exit(1)
	}
	if *keyHex == "" {
		fmt.Printf("Address:     %s\n", signer.Address().Hex())
		fmt.Printf("Private Key: %s (keep secret)\n\n", signer.PrivateKeyHex())
	}

	var sideNum uint8
	if *side == "sell" {
		sideNum = 1
	}
	var tifNum uint8
	if *tif == "IOC" {
		tifNum = 1
	}

	cfg := params.LoadFromEnv("")
	typed := crypto.NewTypedSigner(crypto.Domain{
		Name:    "LimitBook",
		Version: "1",
		ChainID: cfg.Signing.ChainID,
	})

	msg := &crypto.PlaceOrderMsg{
		PairID: common.HexToHash(*pairID),
		Side:   sideNum,
		TIF:    tifNum,
		Price:  *price,
		Amount: *amount,
		Nonce:  *nonce,
		Owner:  signer.Address(),
	}

	digest, err := typed.HashPlaceOrder(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	body := map[string]any{
		"pairId":    msg.PairID.Hex(),
		"side":      *side,
		"tif":       *tif,
		"price":     *price,
		"amount":    *amount,
		"nonce":     *nonce,
		"owner":     signer.Address().Hex(),
		"signature": fmt.Sprintf("0x%x", sig),
	}
	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("POST /api/v1/orders")
	fmt.Println(string(out))
}
