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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"

	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
)

// authenticate runs the challenge-response handshake on a fresh
// connection. The server issues a nonce, the client signs it with the
// identity key, the server verifies against the user's registered
// public keys. Refusals and protocol violations during the handshake
// become AuthenticationError; transport failures keep their class so
// network problems stay diagnosable. Either way the caller must
// discard the connection on error.
func (c *Conn) authenticate(signer crypto.Signer) error {
	req := &clientproto.BeginSessionRequest{UserName: c.user}
	if err := c.writeMessage(clientproto.TypeBeginSessionRequest, req); err != nil {
		return err
	}
	var session clientproto.BeginSessionResponse
	if err := c.readMessage(clientproto.TypeBeginSessionResponse, &session); err != nil {
		return c.authFailure(err)
	}
	if !session.SessionStarted {
		return &AuthenticationError{User: c.user, Message: "server refused to start a session"}
	}
	if len(session.Challenge) == 0 {
		return &AuthenticationError{User: c.user, Message: "server sent an empty challenge"}
	}

	signature, err := signChallenge(signer, session.Challenge)
	if err != nil {
		return &AuthenticationError{User: c.user, Message: err.Error()}
	}
	auth := &clientproto.ClientAuthenticationRequest{Signature: signature}
	if err := c.writeMessage(clientproto.TypeClientAuthenticationRequest, auth); err != nil {
		return err
	}
	var verdict clientproto.ClientAuthenticationResponse
	if err := c.readMessage(clientproto.TypeClientAuthenticationResponse, &verdict); err != nil {
		return c.authFailure(err)
	}
	if !verdict.Authenticated {
		return &AuthenticationError{User: c.user, Message: "server rejected the challenge signature"}
	}
	return nil
}

// authFailure classifies a failed handshake read. A peer that answers
// the handshake with unexpected or malformed frames is refusing to
// authenticate us as far as the caller is concerned, so frame
// violations fold into AuthenticationError with the protocol detail
// preserved in the message.
func (c *Conn) authFailure(err error) error {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return &AuthenticationError{User: c.user, Message: err.Error()}
	}
	return err
}

// signChallenge signs the server nonce with the identity key. RSA and
// ECDSA keys sign a SHA-512 digest of the challenge, RSA with PKCS#1
// v1.5 padding and ECDSA as ASN.1 DER, matching the server's
// verifiers. Ed25519 signs the raw challenge, as the scheme requires.
func signChallenge(signer crypto.Signer, challenge []byte) ([]byte, error) {
	if key, ok := signer.(ed25519.PrivateKey); ok {
		return key.Sign(rand.Reader, challenge, crypto.Hash(0))
	}
	digest := sha512.Sum512(challenge)
	return signer.Sign(rand.Reader, digest[:], crypto.SHA512)
}
