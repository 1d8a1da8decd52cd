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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestParsePrivateKey(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecdsaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, ed25519Key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rsaPKCS8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	ecdsaSEC1, err := x509.MarshalECPrivateKey(ecdsaKey)
	require.NoError(t, err)
	ed25519PKCS8, err := x509.MarshalPKCS8PrivateKey(ed25519Key)
	require.NoError(t, err)
	ed25519OpenSSH, err := ssh.MarshalPrivateKey(ed25519Key, "test key")
	require.NoError(t, err)

	testcases := []struct {
		name   string
		keyPEM []byte
	}{{
		name:   "rsa pkcs1",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}),
	}, {
		name:   "rsa pkcs8",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: rsaPKCS8}),
	}, {
		name:   "ecdsa sec1",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecdsaSEC1}),
	}, {
		name:   "ed25519 pkcs8",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ed25519PKCS8}),
	}, {
		name:   "ed25519 openssh",
		keyPEM: pem.EncodeToMemory(ed25519OpenSSH),
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			signer, err := ParsePrivateKey(tc.keyPEM)
			require.NoError(t, err)
			require.NotNil(t, signer.Public())
		})
	}
}

func TestParsePrivateKeyErrors(t *testing.T) {
	encrypted := pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY",
		Headers: map[string]string{
			"Proc-Type": "4,ENCRYPTED",
			"DEK-Info":  "AES-128-CBC,0102030405060708090A0B0C0D0E0F10",
		},
		Bytes: []byte{1, 2, 3},
	})

	testcases := []struct {
		name   string
		keyPEM []byte
		err    string
	}{{
		name:   "not pem",
		keyPEM: []byte("this is not a key"),
		err:    "no PEM block",
	}, {
		name:   "passphrase protected",
		keyPEM: encrypted,
		err:    "passphrase-protected",
	}, {
		name:   "wrong block type",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}}),
		err:    "unexpected private key PEM type",
	}, {
		name:   "corrupt key bytes",
		keyPEM: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte{1, 2, 3}}),
		err:    "",
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePrivateKey(tc.keyPEM)
			require.Error(t, err)
			if tc.err != "" {
				assert.Contains(t, err.Error(), tc.err)
			}
		})
	}
}

func TestLoadIdentityFile(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "identity")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	signer, err := LoadIdentityFile(path)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), signer.Public())

	_, err = LoadIdentityFile(filepath.Join(t.TempDir(), "no-such-file"))
	require.Error(t, err)
}
