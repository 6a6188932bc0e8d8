// Package main generates a random session secret and PBKDF2 salt for the gateway.
// The secret is a raw 32-byte AES key, so no key stretching happens at startup.
package main

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/church-dashboard/church-dashboard/internal/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}
	salt, err := crypto.GenerateSalt(16)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Session Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nSESSION_SECRET=%s\n", hex.EncodeToString(key))
	fmt.Printf("CHD_SESSION_SALT=%s\n", hex.EncodeToString(salt))
	fmt.Println("\n==========================================================")
	fmt.Println("Rotating the secret signs every user out: existing cookies")
	fmt.Println("no longer decrypt and are treated as absent.")
	fmt.Println("==========================================================")
}
