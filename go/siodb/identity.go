/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package siodb

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
)

const (
	pkcs1PrivateKeyType   = "RSA PRIVATE KEY"
	pkcs8PrivateKeyType   = "PRIVATE KEY"
	ecPrivateKeyType      = "EC PRIVATE KEY"
	opensshPrivateKeyType = "OPENSSH PRIVATE KEY"
)

// LoadIdentityFile reads the private key at path and returns it as a
// signer for the authentication handshake. A leading ~ in path expands
// to the home directory.
func LoadIdentityFile(path string) (crypto.Signer, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("identity file %q: %v", path, err)
	}
	keyPEM, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("identity file: %v", err)
	}
	signer, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("identity file %q: %v", path, err)
	}
	return signer, nil
}

// ParsePrivateKey parses a PEM-encoded private key. RSA, ECDSA and
// Ed25519 keys are accepted, in PKCS#1, PKCS#8, SEC 1 or OpenSSH
// encoding. Passphrase-protected keys are rejected.
func ParsePrivateKey(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Headers["Proc-Type"] == "4,ENCRYPTED" {
		return nil, fmt.Errorf("passphrase-protected private keys are not supported")
	}

	var priv crypto.PrivateKey
	var err error
	switch block.Type {
	case pkcs1PrivateKeyType:
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case ecPrivateKeyType:
		priv, err = x509.ParseECPrivateKey(block.Bytes)
	case pkcs8PrivateKeyType:
		priv, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case opensshPrivateKeyType:
		priv, err = ssh.ParseRawPrivateKey(keyPEM)
	default:
		return nil, fmt.Errorf("unexpected private key PEM type %q", block.Type)
	}
	if err != nil {
		return nil, err
	}

	switch key := priv.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	case ed25519.PrivateKey:
		return key, nil
	case *ed25519.PrivateKey:
		// ssh.ParseRawPrivateKey returns ed25519 keys by pointer.
		return *key, nil
	}
	return nil, fmt.Errorf("unsupported private key type %T", priv)
}
