package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/nats-io/nkeys"
)

// ConnectOpts carries everything the subscriber needs to dial a server and
// build its CONNECT payload. It is deliberately separate from Context/Config
// above: a Context is a named, persisted server profile, while ConnectOpts is
// the fully-resolved set of values (server address plus behavioral flags)
// that a single Subscriber.Connect call consumes.
type ConnectOpts struct {
	Address   string // host:port, TLS scheme stripped
	TLSConfig *tls.Config
	Token     string
	JWT       string
	User      string
	Password  string
	Name      string
	Verbose   bool
	Pedantic  bool
}

// FromContext resolves a Context's server URL and, if present, its .creds
// file into dial-ready ConnectOpts. tlsConfig is passed through unchanged;
// the caller builds it (client certs, CA pool) since that construction is
// outside the scope of context loading.
func FromContext(ctx *Context, name string, tlsConfig *tls.Config) (ConnectOpts, error) {
	address, requiresTLS, err := parseServerURL(ctx.Server)
	if err != nil {
		return ConnectOpts{}, err
	}
	if requiresTLS && tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}

	var jwt string
	if ctx.Creds != "" {
		jwt, err = decodeUserJWT(ctx.Creds)
		if err != nil {
			return ConnectOpts{}, fmt.Errorf("context %q: %w", ctx.Name, err)
		}
	}

	return ConnectOpts{
		Address:   address,
		TLSConfig: tlsConfig,
		Token:     ctx.Token,
		JWT:       jwt,
		Name:      name,
	}, nil
}

// decodeUserJWT reads a .creds file (the format `nats context save` and
// `nsc generate creds` produce: a user JWT and an NKey seed, each wrapped in
// its own "-----BEGIN ... -----" block) and returns the JWT half. The seed
// half signs a server-issued nonce during the real NATS auth handshake; this
// client sends CONNECT immediately after dialing without waiting on that
// challenge, so the seed is decoded only to validate the file and is
// otherwise discarded here.
func decodeUserJWT(credsPath string) (string, error) {
	data, err := os.ReadFile(credsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read creds file: %w", err)
	}
	jwt, err := nkeys.ParseDecoratedJWT(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse creds file: %w", err)
	}
	if _, err := nkeys.ParseDecoratedNKey(data); err != nil {
		return "", fmt.Errorf("creds file missing a valid NKey seed: %w", err)
	}
	return jwt, nil
}

// parseServerURL accepts "nats://host:port", "tls://host:port", or a bare
// "host:port" and returns the dialable address plus whether TLS is implied
// by the scheme.
func parseServerURL(server string) (address string, tlsRequired bool, err error) {
	if !strings.Contains(server, "://") {
		return server, false, nil
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", false, fmt.Errorf("invalid server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "nats", "":
		return u.Host, false, nil
	case "tls":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
}

// connectPayload mirrors the fields the NATS server expects in a CONNECT
// frame's JSON body.
type connectPayload struct {
	Verbose     bool   `json:"verbose"`
	Pedantic    bool   `json:"pedantic"`
	TLSRequired bool   `json:"tls_required"`
	AuthToken   string `json:"auth_token,omitempty"`
	JWT         string `json:"jwt,omitempty"`
	User        string `json:"user,omitempty"`
	Pass        string `json:"pass,omitempty"`
	Name        string `json:"name,omitempty"`
	Lang        string `json:"lang"`
	Version     string `json:"version"`
	Protocol    int    `json:"protocol"`
	Headers     bool   `json:"headers"`
}

// clientLang and clientVersion identify this library in the CONNECT frame.
const (
	clientLang    = "go"
	clientVersion = "0.1.0"
)

// BuildConnectJSON marshals opts into the CONNECT frame's JSON body.
func BuildConnectJSON(opts ConnectOpts) ([]byte, error) {
	payload := connectPayload{
		Verbose:     opts.Verbose,
		Pedantic:    opts.Pedantic,
		TLSRequired: opts.TLSConfig != nil,
		AuthToken:   opts.Token,
		JWT:         opts.JWT,
		User:        opts.User,
		Pass:        opts.Password,
		Name:        opts.Name,
		Lang:        clientLang,
		Version:     clientVersion,
		Protocol:    1,
		Headers:     true,
	}
	return json.Marshal(payload)
}
