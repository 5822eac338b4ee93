// Command signpayload prints a Stripe-Signature header for a payload file.
// It is meant for exercising a local router with curl.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"stripe-webhook-router/internal/signature"
)

func main() {
	payloadPath := flag.String("payload", "-", "path to the JSON payload, - for stdin")
	secret := flag.String("secret", os.Getenv("STRIPE_ENDPOINT_SECRET"), "endpoint signing secret")
	scheme := flag.String("scheme", signature.DefaultScheme, "signature scheme")
	flag.Parse()

	if *secret == "" {
		log.Fatal("an endpoint secret is required (-secret or STRIPE_ENDPOINT_SECRET)")
	}

	var (
		payload []byte
		err     error
	)
	if *payloadPath == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(*payloadPath)
	}
	if err != nil {
		log.Fatalf("Failed to read payload: %v", err)
	}

	fmt.Println(signature.SignHeader(time.Now(), payload, *secret, *scheme))
}
