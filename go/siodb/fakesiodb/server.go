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

// Package fakesiodb provides a Siodb server for tests. It speaks the
// real wire protocol, verifies challenge signatures against the test
// identity key it generates, and serves canned results. Fault
// injection knobs cover the failure modes a client must survive.
package fakesiodb

import (
	"bufio"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

const (
	defaultUser = "tester"
	// maxFrame bounds what the fake accepts from clients.
	maxFrame = 1 << 24
)

// Result is a canned result set.
type Result struct {
	Columns             []clientproto.ColumnDescription
	Rows                [][]sqltypes.Value
	HasAffectedRowCount bool
	AffectedRowCount    uint64
}

// ExpectedResult holds the data for a matched query.
type ExpectedResult struct {
	*Result
	// BeforeFunc is called synchronously before the response is
	// written.
	BeforeFunc func()
	// closeAfterRows, when enabled, closes the connection after that
	// many rows. If more rows were registered, half of the next one is
	// written first so the client sees a frame cut in the middle.
	closeAfterRows   int
	closeAfterEnable bool
}

type exprResult struct {
	expr   *regexp.Regexp
	result *Result
}

type rejectedQuery struct {
	code int32
	text string
}

// DB is a fake Siodb server and all its methods are thread safe. Each
// accepted connection runs the session handshake and then serves
// commands until the client closes or a fault knob fires.
type DB struct {
	// Fields set at construction time.

	t            *testing.T
	listener     net.Listener
	scheme       string
	identityFile string
	publicKey    crypto.PublicKey
	acceptWG     sync.WaitGroup
	connWG       sync.WaitGroup

	// mu protects all the following fields.
	mu sync.Mutex
	// user is the only account the fake opens sessions for.
	user string
	// closed makes Close idempotent.
	closed bool
	// challenges records every nonce issued, in order.
	challenges [][]byte
	// data maps tolower(query) to a result.
	data map[string]*ExpectedResult
	// rejectedData maps tolower(query) to a server diagnostic.
	rejectedData map[string]rejectedQuery
	// patternData is a list of regexps to results.
	patternData []exprResult
	// queryCalled keeps track of how many times a query was called.
	queryCalled map[string]int
	// lastRequestID is the request id of the last Command seen.
	lastRequestID uint64
	// connections tracks the open connections so Close can kill them.
	connections map[net.Conn]bool

	// Fault knobs.

	// rejectSessions answers every BeginSessionRequest with
	// session_started false.
	rejectSessions bool
	// rejectAuth answers every signature with authenticated false, no
	// matter how valid it is.
	rejectAuth bool
	// shouldClose closes the connection instead of answering the next
	// query.
	shouldClose bool
	// wrongResponseType answers the next query with a
	// BeginSessionResponse instead of a ServerResponse.
	wrongResponseType bool
	// wrongRequestID echoes request id + 1 on the next response.
	wrongRequestID bool
	// oversizedResponse declares an absurd payload length on the next
	// response and closes.
	oversizedResponse bool
}

// New creates a server listening on a local TCP port, generates an
// Ed25519 identity for the test user and starts accepting. The caller
// must Close it.
func New(t *testing.T) *DB {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}
	return start(t, listener, "siodb")
}

// NewUnix is like New on a Unix domain socket.
func NewUnix(t *testing.T) *DB {
	socketFile := filepath.Join(t.TempDir(), "fakesiodb.sock")
	listener, err := net.Listen("unix", socketFile)
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}
	return start(t, listener, "siodbu")
}

// NewTLS is like New behind TLS with a self-signed certificate, so
// clients must connect with certificate verification disabled.
func NewTLS(t *testing.T) *DB {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}
	cert, err := selfSignedCert()
	if err != nil {
		t.Fatalf("generating server certificate failed: %v", err)
	}
	conf := &tls.Config{Certificates: []tls.Certificate{cert}}
	return start(t, tls.NewListener(inner, conf), "siodbs")
}

func start(t *testing.T, listener net.Listener, scheme string) *DB {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating identity key failed: %v", err)
	}
	db := &DB{
		t:            t,
		listener:     listener,
		scheme:       scheme,
		identityFile: writeIdentityFile(t, priv),
		publicKey:    pub,
		user:         defaultUser,
		data:         make(map[string]*ExpectedResult),
		rejectedData: make(map[string]rejectedQuery),
		queryCalled:  make(map[string]int),
		connections:  make(map[net.Conn]bool),
	}

	db.acceptWG.Add(1)
	go db.accept()
	return db
}

func writeIdentityFile(t *testing.T, key crypto.Signer) string {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling identity key failed: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	path := filepath.Join(t.TempDir(), "identity")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("writing identity file failed: %v", err)
	}
	return path
}

func selfSignedCert() (tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"fakesiodb"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pub, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}

// URI returns a connection URI for this server, identity file and all.
// Extra options can be appended with '&'.
func (db *DB) URI() string {
	db.mu.Lock()
	user := db.user
	db.mu.Unlock()

	opts := url.Values{}
	opts.Set("identity_file", db.identityFile)
	if db.scheme == "siodbs" {
		opts.Set("tls_skip_verify", "true")
	}
	if db.scheme == "siodbu" {
		return fmt.Sprintf("siodbu:%s?%s", db.listener.Addr().String(), opts.Encode())
	}
	return fmt.Sprintf("%s://%s@%s?%s", db.scheme, user, db.listener.Addr().String(), opts.Encode())
}

// Addr returns the address the server listens on.
func (db *DB) Addr() net.Addr {
	return db.listener.Addr()
}

// User returns the account the server accepts.
func (db *DB) User() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.user
}

// SetUser changes the only account the server opens sessions for.
func (db *DB) SetUser(user string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.user = user
}

// IdentityFile returns the path of the PEM key registered for the test
// user.
func (db *DB) IdentityFile() string {
	return db.identityFile
}

// Challenges returns every nonce issued so far, in handshake order.
func (db *DB) Challenges() [][]byte {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([][]byte, len(db.challenges))
	copy(out, db.challenges)
	return out
}

// Close closes the listener, kills open connections and waits for all
// handlers to finish.
func (db *DB) Close() {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return
	}
	db.closed = true
	db.mu.Unlock()

	db.listener.Close()
	db.acceptWG.Wait()

	db.mu.Lock()
	for c := range db.connections {
		c.Close()
	}
	db.mu.Unlock()
	db.connWG.Wait()
}

func (db *DB) accept() {
	defer db.acceptWG.Done()
	for {
		conn, err := db.listener.Accept()
		if err != nil {
			// Listener closed.
			return
		}
		db.mu.Lock()
		db.connections[conn] = true
		db.mu.Unlock()
		db.connWG.Add(1)
		go db.serve(conn)
	}
}

func (db *DB) serve(conn net.Conn) {
	defer db.connWG.Done()
	defer func() {
		conn.Close()
		db.mu.Lock()
		delete(db.connections, conn)
		db.mu.Unlock()
	}()

	sc := &serverConn{db: db, conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
	if err := sc.handshake(); err != nil {
		return
	}
	for sc.serveCommand() {
	}
}

//
// Methods to add expected queries and results.
//

// AddQuery adds a query and its expected result.
func (db *DB) AddQuery(query string, result *Result) *ExpectedResult {
	if len(result.Rows) > 0 && len(result.Columns) == 0 {
		panic(fmt.Errorf("please add Columns to this Result so it is valid: %v", query))
	}
	resultCopy := &Result{}
	*resultCopy = *result
	db.mu.Lock()
	defer db.mu.Unlock()
	key := strings.ToLower(query)
	r := &ExpectedResult{Result: resultCopy}
	db.data[key] = r
	db.queryCalled[key] = 0
	return r
}

// AddQueryPattern adds an expected result for a set of queries. The
// patterns are checked if no exact match from AddQuery is found, with
// anchors added and case-insensitive matching on.
func (db *DB) AddQueryPattern(queryPattern string, result *Result) {
	if len(result.Rows) > 0 && len(result.Columns) == 0 {
		panic(fmt.Errorf("please add Columns to this Result so it is valid: %v", queryPattern))
	}
	expr := regexp.MustCompile("(?is)^" + queryPattern + "$")
	resultCopy := *result
	db.mu.Lock()
	defer db.mu.Unlock()
	db.patternData = append(db.patternData, exprResult{expr, &resultCopy})
}

// AddRejectedQuery adds a query the server will answer with a
// diagnostic status instead of a result.
func (db *DB) AddRejectedQuery(query string, code int32, text string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rejectedData[strings.ToLower(query)] = rejectedQuery{code: code, text: text}
}

// SetCloseAfterRows makes the registered query's connection die after
// writing n rows. If more rows exist, the next one is cut in half
// first.
func (db *DB) SetCloseAfterRows(query string, n int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.data[strings.ToLower(query)]
	if !ok {
		db.t.Fatalf("no query registered for: %v", query)
	}
	r.closeAfterRows = n
	r.closeAfterEnable = true
}

// GetQueryCalledNum returns how many times the server answered a
// certain query.
func (db *DB) GetQueryCalledNum(query string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.queryCalled[strings.ToLower(query)]
}

// LastRequestID returns the request id of the last Command received.
func (db *DB) LastRequestID() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lastRequestID
}

//
// Fault knobs.
//

// EnableRejectSessions refuses every new session.
func (db *DB) EnableRejectSessions() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rejectSessions = true
}

// EnableRejectAuth rejects every signature, valid or not.
func (db *DB) EnableRejectAuth() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rejectAuth = true
}

// EnableShouldClose closes the connection instead of answering the
// next query.
func (db *DB) EnableShouldClose() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.shouldClose = true
}

// EnableWrongResponseType answers the next query with a message of the
// wrong type.
func (db *DB) EnableWrongResponseType() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.wrongResponseType = true
}

// EnableWrongRequestID echoes a stale request id on the next response.
func (db *DB) EnableWrongRequestID() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.wrongRequestID = true
}

// EnableOversizedResponse declares a payload far beyond any sane limit
// on the next response, then closes.
func (db *DB) EnableOversizedResponse() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.oversizedResponse = true
}

//
// Per-connection protocol handling.
//

type serverConn struct {
	db   *DB
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func (sc *serverConn) readFrame() (clientproto.MessageType, []byte, error) {
	typ, err := binary.ReadUvarint(sc.r)
	if err != nil {
		return 0, nil, err
	}
	length, err := binary.ReadUvarint(sc.r)
	if err != nil {
		return 0, nil, err
	}
	if length > maxFrame {
		return 0, nil, fmt.Errorf("client frame of %d bytes", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(sc.r, payload); err != nil {
		return 0, nil, err
	}
	return clientproto.MessageType(typ), payload, nil
}

func (sc *serverConn) writeMessage(typ clientproto.MessageType, msg clientproto.Message) error {
	payload := msg.AppendTo(nil)
	if err := sc.writeFrameHeader(typ, uint64(len(payload))); err != nil {
		return err
	}
	_, err := sc.w.Write(payload)
	return err
}

func (sc *serverConn) writeFrameHeader(typ clientproto.MessageType, length uint64) error {
	var hdr [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(typ))
	n += binary.PutUvarint(hdr[n:], length)
	_, err := sc.w.Write(hdr[:n])
	return err
}

// handshake runs the server side of the session setup: challenge out,
// signature in, verdict out.
func (sc *serverConn) handshake() error {
	typ, payload, err := sc.readFrame()
	if err != nil {
		return err
	}
	if typ != clientproto.TypeBeginSessionRequest {
		return fmt.Errorf("handshake started with %v", typ)
	}
	var req clientproto.BeginSessionRequest
	if err := req.Unmarshal(payload); err != nil {
		return err
	}

	sc.db.mu.Lock()
	reject := sc.db.rejectSessions || req.UserName != sc.db.user
	rejectAuth := sc.db.rejectAuth
	var challenge []byte
	if !reject {
		challenge = make([]byte, 64)
		if _, err := rand.Read(challenge); err != nil {
			sc.db.mu.Unlock()
			return err
		}
		sc.db.challenges = append(sc.db.challenges, challenge)
	}
	sc.db.mu.Unlock()

	if reject {
		sc.writeMessage(clientproto.TypeBeginSessionResponse, &clientproto.BeginSessionResponse{})
		sc.w.Flush()
		return fmt.Errorf("session refused for user %q", req.UserName)
	}
	resp := &clientproto.BeginSessionResponse{SessionStarted: true, Challenge: challenge}
	if err := sc.writeMessage(clientproto.TypeBeginSessionResponse, resp); err != nil {
		return err
	}
	if err := sc.w.Flush(); err != nil {
		return err
	}

	typ, payload, err = sc.readFrame()
	if err != nil {
		return err
	}
	if typ != clientproto.TypeClientAuthenticationRequest {
		return fmt.Errorf("expected signature, got %v", typ)
	}
	var auth clientproto.ClientAuthenticationRequest
	if err := auth.Unmarshal(payload); err != nil {
		return err
	}

	ok := !rejectAuth && verifySignature(sc.db.publicKey, challenge, auth.Signature)
	verdict := &clientproto.ClientAuthenticationResponse{Authenticated: ok}
	if err := sc.writeMessage(clientproto.TypeClientAuthenticationResponse, verdict); err != nil {
		return err
	}
	if err := sc.w.Flush(); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("signature rejected for user %q", req.UserName)
	}
	return nil
}

func verifySignature(pub crypto.PublicKey, challenge, sig []byte) bool {
	digest := sha512.Sum512(challenge)
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, crypto.SHA512, digest[:], sig) == nil
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(k, digest[:], sig)
	case ed25519.PublicKey:
		return ed25519.Verify(k, challenge, sig)
	}
	return false
}

// serveCommand handles one client frame. It returns false when the
// connection is done.
func (sc *serverConn) serveCommand() bool {
	typ, payload, err := sc.readFrame()
	if err != nil {
		// Client closed or went away.
		return false
	}
	switch typ {
	case clientproto.TypeCloseSessionRequest:
		return false
	case clientproto.TypeCommand:
		return sc.handleCommand(payload)
	default:
		sc.db.t.Errorf("fakesiodb: client sent unexpected %v", typ)
		return false
	}
}

func (sc *serverConn) handleCommand(payload []byte) bool {
	var cmd clientproto.Command
	if err := cmd.Unmarshal(payload); err != nil {
		sc.db.t.Errorf("fakesiodb: bad Command payload: %v", err)
		return false
	}

	db := sc.db
	key := strings.ToLower(cmd.Text)
	db.mu.Lock()
	db.queryCalled[key]++
	db.lastRequestID = cmd.RequestID

	requestID := cmd.RequestID
	if db.wrongRequestID {
		db.wrongRequestID = false
		requestID++
	}
	if db.shouldClose {
		db.shouldClose = false
		db.mu.Unlock()
		sc.conn.Close()
		return false
	}
	if db.wrongResponseType {
		db.wrongResponseType = false
		db.mu.Unlock()
		sc.writeMessage(clientproto.TypeBeginSessionResponse, &clientproto.BeginSessionResponse{})
		sc.w.Flush()
		return false
	}
	if db.oversizedResponse {
		db.oversizedResponse = false
		db.mu.Unlock()
		sc.writeFrameHeader(clientproto.TypeServerResponse, 1<<40)
		sc.w.Flush()
		sc.conn.Close()
		return false
	}
	if rejected, ok := db.rejectedData[key]; ok {
		db.mu.Unlock()
		return sc.writeError(requestID, rejected)
	}
	expected, ok := db.data[key]
	if !ok {
		for _, pat := range db.patternData {
			if pat.expr.MatchString(cmd.Text) {
				expected = &ExpectedResult{Result: pat.result}
				ok = true
				break
			}
		}
	}
	db.mu.Unlock()

	if !ok {
		return sc.writeError(requestID, rejectedQuery{code: 1, text: fmt.Sprintf("query %q is not supported", cmd.Text)})
	}
	if f := expected.BeforeFunc; f != nil {
		f()
	}
	return sc.writeResult(requestID, expected)
}

func (sc *serverConn) writeError(requestID uint64, rejected rejectedQuery) bool {
	resp := &clientproto.ServerResponse{
		RequestID: requestID,
		Message:   []clientproto.StatusMessage{{StatusCode: rejected.code, Text: rejected.text}},
	}
	if err := sc.writeMessage(clientproto.TypeServerResponse, resp); err != nil {
		return false
	}
	return sc.w.Flush() == nil
}

func (sc *serverConn) writeResult(requestID uint64, expected *ExpectedResult) bool {
	res := expected.Result
	resp := &clientproto.ServerResponse{
		RequestID:           requestID,
		ColumnDescription:   res.Columns,
		HasAffectedRowCount: res.HasAffectedRowCount,
		AffectedRowCount:    res.AffectedRowCount,
	}
	if err := sc.writeMessage(clientproto.TypeServerResponse, resp); err != nil {
		return false
	}
	if len(res.Columns) == 0 {
		return sc.w.Flush() == nil
	}

	maskPresent := false
	for _, col := range res.Columns {
		if col.IsNull {
			maskPresent = true
			break
		}
	}
	maskSize := (len(res.Columns) + 7) / 8

	for i, row := range res.Rows {
		if expected.closeAfterEnable && i == expected.closeAfterRows {
			// Cut the next row in half so the client sees a frame die
			// mid-payload.
			payload := encodeRow(row, maskPresent, maskSize)
			sc.writeRowHeader(uint64(len(payload)))
			sc.w.Write(payload[:len(payload)/2])
			sc.w.Flush()
			sc.conn.Close()
			return false
		}
		payload := encodeRow(row, maskPresent, maskSize)
		if err := sc.writeRowHeader(uint64(len(payload))); err != nil {
			return false
		}
		if _, err := sc.w.Write(payload); err != nil {
			return false
		}
	}
	if expected.closeAfterEnable && expected.closeAfterRows >= len(res.Rows) {
		// All rows written; die before the terminator.
		sc.w.Flush()
		sc.conn.Close()
		return false
	}
	if err := sc.writeRowHeader(0); err != nil {
		return false
	}
	return sc.w.Flush() == nil
}

func (sc *serverConn) writeRowHeader(length uint64) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], length)
	_, err := sc.w.Write(hdr[:n])
	return err
}

func encodeRow(row []sqltypes.Value, maskPresent bool, maskSize int) []byte {
	var buf []byte
	if maskPresent {
		mask := make([]byte, maskSize)
		for i, v := range row {
			if v.IsNull() {
				mask[i/8] |= 1 << (i % 8)
			}
		}
		buf = append(buf, mask...)
	}
	for _, v := range row {
		buf = v.AppendTo(buf)
	}
	return buf
}
