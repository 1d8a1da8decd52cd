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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Connection URI schemes.
const (
	SchemeTCP  = "siodb"  // plain TCP
	SchemeTLS  = "siodbs" // TLS over TCP
	SchemeUnix = "siodbu" // unix domain socket
)

// Defaults applied by ParseURI and Connect.
const (
	DefaultPort           = 50000
	DefaultUser           = "root"
	DefaultIdentityFile   = "~/.ssh/id_rsa"
	DefaultMaxMessageSize = 1 << 24 // 16 MiB
)

// ConnParams describes how to reach and authenticate to a Siodb
// server. A zero field means its default.
type ConnParams struct {
	// Scheme is one of SchemeTCP, SchemeTLS or SchemeUnix. Empty
	// means SchemeTLS.
	Scheme string
	Host   string
	Port   int
	// Path is the socket path for SchemeUnix.
	Path string

	// User is the Siodb user to authenticate as.
	User string
	// IdentityFile is the private key whose public half is registered
	// with the user. A leading ~ expands to the home directory.
	IdentityFile string

	// TLSSkipVerify disables server certificate verification for
	// SchemeTLS.
	TLSSkipVerify bool

	// Trace logs every frame sent and received.
	Trace bool

	// MaxMessageSize bounds the declared length of incoming frames
	// and rows. Larger declarations fail before any allocation.
	MaxMessageSize uint64

	// Timeouts are enforced as deadlines on the socket, so they
	// surface as transport errors. Zero means no limit.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// ParseURI parses a connection URI of the form
//
//	siodb://user@host:port?identity_file=...&trace=true
//	siodbs://user@host:port?tls_skip_verify=true
//	siodbu:///run/siodb/siodb.socket?identity_file=...
//
// Unknown options are rejected. Sizes accept both byte counts and
// humanized forms such as 16MiB; durations use Go notation such as 10s.
func ParseURI(uri string) (*ConnParams, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %v", uri, err)
	}

	cp := &ConnParams{Scheme: u.Scheme}
	if cp.Scheme == "" {
		cp.Scheme = SchemeTLS
	}
	switch cp.Scheme {
	case SchemeTCP, SchemeTLS:
		cp.Host = u.Hostname()
		if p := u.Port(); p != "" {
			cp.Port, err = strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("port %q: %v", p, err)
			}
		}
	case SchemeUnix:
		cp.Path = u.Path
		if cp.Path == "" {
			cp.Path = u.Opaque
		}
		if cp.Path == "" {
			return nil, fmt.Errorf("%s URI %q has no socket path", SchemeUnix, uri)
		}
	default:
		return nil, fmt.Errorf("scheme %q: want %s, %s or %s", cp.Scheme, SchemeTCP, SchemeTLS, SchemeUnix)
	}
	if u.User != nil {
		cp.User = u.User.Username()
	}

	for key, vals := range u.Query() {
		val := vals[len(vals)-1]
		switch key {
		case "identity_file":
			cp.IdentityFile = val
		case "trace":
			cp.Trace, err = strconv.ParseBool(val)
		case "tls_skip_verify":
			cp.TLSSkipVerify, err = strconv.ParseBool(val)
		case "max_message_size":
			cp.MaxMessageSize, err = humanize.ParseBytes(val)
		case "connect_timeout":
			cp.ConnectTimeout, err = time.ParseDuration(val)
		case "read_timeout":
			cp.ReadTimeout, err = time.ParseDuration(val)
		case "write_timeout":
			cp.WriteTimeout, err = time.ParseDuration(val)
		default:
			return nil, fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("option %s=%q: %v", key, val, err)
		}
	}

	cp.applyDefaults()
	return cp, nil
}

func (cp *ConnParams) applyDefaults() {
	if cp.Scheme == "" {
		cp.Scheme = SchemeTLS
	}
	if cp.Host == "" && cp.Scheme != SchemeUnix {
		cp.Host = "localhost"
	}
	if cp.Port == 0 {
		cp.Port = DefaultPort
	}
	if cp.User == "" {
		cp.User = DefaultUser
	}
	if cp.IdentityFile == "" {
		cp.IdentityFile = DefaultIdentityFile
	}
	if cp.MaxMessageSize == 0 {
		cp.MaxMessageSize = DefaultMaxMessageSize
	}
}

// Address returns the dial target for the configured scheme.
func (cp *ConnParams) Address() string {
	if cp.Scheme == SchemeUnix {
		return cp.Path
	}
	return net.JoinHostPort(cp.Host, strconv.Itoa(cp.Port))
}
