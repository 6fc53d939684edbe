// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Keygen prints a fresh X25519 private key in PKCS#8 PEM, the format the
// decrypted_key config option consumes.
type Keygen struct{}

func (c *Keygen) Run(g *Globals) error {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "GenKey error: %v\n", err)
		return err
	}
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "GenKey error: %v\n", err)
		return err
	}
	_, _ = fmt.Fprint(os.Stdout, string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKeyBytes,
	})))
	return nil
}
