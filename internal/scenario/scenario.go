// Package scenario defines the closed parameter space of the
// authentication test matrix: which parties authenticate, who signed their
// certificates, how the server is named, whether the server checks the
// client's name, and which key (if any) is deliberately broken.
//
// The whole space is statically enumerable and the expected verdict of
// every scenario is a pure function of its configuration, so the matrix
// can be inspected without running a single handshake.
package scenario

import (
	"fmt"
	"strings"
)

// Parties says which sides present a certificate.
type Parties string

const (
	PartiesNone   Parties = "none"
	PartiesServer Parties = "server"
	PartiesMutual Parties = "mutual"
)

// Signer says how deep the issuing hierarchy is.
type Signer string

const (
	SignerSelf         Signer = "self"
	SignerRoot         Signer = "root"
	SignerIntermediate Signer = "intermediate"
)

// Naming says which name the client validates the server against.
type Naming string

const (
	// NamingHost validates against the transport host name.
	NamingHost Naming = "host"
	// NamingService validates against a configured service name distinct
	// from the transport host name.
	NamingService Naming = "service"
)

// ClientCheck says whether the server checks the verified client identity
// against an allow-list after the handshake.
type ClientCheck string

const (
	ClientCheckDisabled ClientCheck = "disabled"
	ClientCheckEnabled  ClientCheck = "enabled"
)

// Corruption names the key deliberately broken for negative testing.
type Corruption string

const (
	CorruptNone         Corruption = "none"
	CorruptServer       Corruption = "server"
	CorruptClient       Corruption = "client"
	CorruptRoot         Corruption = "root"
	CorruptIntermediate Corruption = "intermediate"
)

// Mismatch names a deliberately wrong identity expectation.
type Mismatch string

const (
	MismatchNone Mismatch = "none"
	// MismatchServerName gives the client a wrong name to validate the
	// server certificate against.
	MismatchServerName Mismatch = "server-name"
	// MismatchClientName puts a wrong name on the server's allow-list.
	MismatchClientName Mismatch = "client-name"
)

// Enumeration domains, in matrix order.
var (
	AllParties     = []Parties{PartiesNone, PartiesServer, PartiesMutual}
	AllSigners     = []Signer{SignerSelf, SignerRoot, SignerIntermediate}
	AllNamings     = []Naming{NamingHost, NamingService}
	AllClientCheck = []ClientCheck{ClientCheckDisabled, ClientCheckEnabled}
	AllCorruptions = []Corruption{CorruptNone, CorruptServer, CorruptClient, CorruptRoot, CorruptIntermediate}
	AllMismatches  = []Mismatch{MismatchNone, MismatchServerName, MismatchClientName}
)

// Config is one immutable test case.
type Config struct {
	Parties     Parties     `json:"parties" yaml:"parties"`
	Signer      Signer      `json:"signer" yaml:"signer"`
	Naming      Naming      `json:"naming" yaml:"naming"`
	ClientCheck ClientCheck `json:"client_check" yaml:"client_check"`
	Corruption  Corruption  `json:"corruption" yaml:"corruption"`
	Mismatch    Mismatch    `json:"mismatch" yaml:"mismatch"`
}

// ID returns a stable, greppable identifier built from the full tuple.
func (c Config) ID() string {
	return strings.Join([]string{
		"auth=" + string(c.Parties),
		"signer=" + string(c.Signer),
		"naming=" + string(c.Naming),
		"namecheck=" + string(c.ClientCheck),
		"corrupt=" + string(c.Corruption),
		"mismatch=" + string(c.Mismatch),
	}, ",")
}

// Legal reports whether the combination is executable. The returned reason
// explains a skip; legal configs return ("", true).
//
// The rules keep the matrix free of no-op and double-fault cases:
// an unauthenticated connection performs no verification at all, so only
// its single plain form is enumerated; name checks need a client
// certificate; corrupting a CA that is not in the trust path is
// meaningless; and every negative scenario carries exactly one fault.
func (c Config) Legal() (reason string, ok bool) {
	if c.Parties == PartiesNone {
		plain := Config{Parties: PartiesNone, Signer: SignerSelf, Naming: NamingHost,
			ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone}
		if c != plain {
			return "unauthenticated connection performs no verification", false
		}
		return "", true
	}
	if c.ClientCheck == ClientCheckEnabled && c.Parties != PartiesMutual {
		return "client name check requires a client certificate", false
	}
	if c.Corruption == CorruptClient && c.Parties != PartiesMutual {
		return "client key corruption requires mutual authentication", false
	}
	if c.Corruption == CorruptRoot && c.Signer == SignerSelf {
		return "no root key exists for a self-signed hierarchy", false
	}
	if c.Corruption == CorruptIntermediate && c.Signer != SignerIntermediate {
		return "no intermediate key exists at this signer depth", false
	}
	if c.Mismatch != MismatchNone && c.Corruption != CorruptNone {
		return "scenarios carry exactly one fault", false
	}
	if c.Mismatch == MismatchClientName && c.ClientCheck != ClientCheckEnabled {
		return "a wrong allow-list entry needs the name check enabled", false
	}
	return "", true
}

// Validate checks every field against its domain.
func (c Config) Validate() error {
	if !contains(AllParties, c.Parties) {
		return fmt.Errorf("invalid parties value %q", c.Parties)
	}
	if !contains(AllSigners, c.Signer) {
		return fmt.Errorf("invalid signer value %q", c.Signer)
	}
	if !contains(AllNamings, c.Naming) {
		return fmt.Errorf("invalid naming value %q", c.Naming)
	}
	if !contains(AllClientCheck, c.ClientCheck) {
		return fmt.Errorf("invalid client check value %q", c.ClientCheck)
	}
	if !contains(AllCorruptions, c.Corruption) {
		return fmt.Errorf("invalid corruption value %q", c.Corruption)
	}
	if !contains(AllMismatches, c.Mismatch) {
		return fmt.Errorf("invalid mismatch value %q", c.Mismatch)
	}
	return nil
}

func contains[T comparable](domain []T, v T) bool {
	for _, d := range domain {
		if d == v {
			return true
		}
	}
	return false
}
