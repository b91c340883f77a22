package scenario

import (
	"testing"
)

// =============================================================================
// Legality Tests
// =============================================================================

func TestU_Legal_Plaintext(t *testing.T) {
	plain := Config{Parties: PartiesNone, Signer: SignerSelf, Naming: NamingHost,
		ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone}
	if _, ok := plain.Legal(); !ok {
		t.Error("the plain unauthenticated scenario must be legal")
	}

	corrupted := plain
	corrupted.Corruption = CorruptServer
	if _, ok := corrupted.Legal(); ok {
		t.Error("unauthenticated scenario with corruption must be illegal")
	}
}

func TestU_Legal_Rules(t *testing.T) {
	base := Config{Parties: PartiesMutual, Signer: SignerIntermediate, Naming: NamingHost,
		ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone}

	tests := []struct {
		name   string
		mutate func(Config) Config
		legal  bool
	}{
		{
			name:   "[Unit] base mutual intermediate scenario",
			mutate: func(c Config) Config { return c },
			legal:  true,
		},
		{
			name: "[Unit] client check without client certificate",
			mutate: func(c Config) Config {
				c.Parties = PartiesServer
				c.ClientCheck = ClientCheckEnabled
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] client corruption without mutual auth",
			mutate: func(c Config) Config {
				c.Parties = PartiesServer
				c.Corruption = CorruptClient
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] root corruption of self-signed hierarchy",
			mutate: func(c Config) Config {
				c.Signer = SignerSelf
				c.Corruption = CorruptRoot
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] intermediate corruption of root-signed hierarchy",
			mutate: func(c Config) Config {
				c.Signer = SignerRoot
				c.Corruption = CorruptIntermediate
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] double fault",
			mutate: func(c Config) Config {
				c.Corruption = CorruptServer
				c.Mismatch = MismatchServerName
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] wrong allow-list entry without name check",
			mutate: func(c Config) Config {
				c.Mismatch = MismatchClientName
				return c
			},
			legal: false,
		},
		{
			name: "[Unit] wrong allow-list entry with name check",
			mutate: func(c Config) Config {
				c.ClientCheck = ClientCheckEnabled
				c.Mismatch = MismatchClientName
				return c
			},
			legal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := tt.mutate(base).Legal()
			if ok != tt.legal {
				t.Errorf("Legal() = (%q, %v), want legal=%v", reason, ok, tt.legal)
			}
			if !ok && reason == "" {
				t.Error("illegal combination must carry a reason")
			}
		})
	}
}

// =============================================================================
// Expected Verdict Tests
// =============================================================================

func TestU_Expected_Verdicts(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Verdict
	}{
		{
			name: "[Unit] plaintext always accepts",
			cfg:  Config{Parties: PartiesNone, Signer: SignerSelf, Naming: NamingHost, ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone},
			want: VerdictAccept,
		},
		{
			name: "[Unit] mutual intermediate host accepts",
			cfg:  Config{Parties: PartiesMutual, Signer: SignerIntermediate, Naming: NamingHost, ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone},
			want: VerdictAccept,
		},
		{
			name: "[Unit] corrupted intermediate rejects at handshake",
			cfg:  Config{Parties: PartiesMutual, Signer: SignerIntermediate, Naming: NamingHost, ClientCheck: ClientCheckDisabled, Corruption: CorruptIntermediate, Mismatch: MismatchNone},
			want: VerdictRejectHandshake,
		},
		{
			name: "[Unit] corrupted self-signed server leaf rejects at handshake",
			cfg:  Config{Parties: PartiesServer, Signer: SignerSelf, Naming: NamingHost, ClientCheck: ClientCheckDisabled, Corruption: CorruptServer, Mismatch: MismatchNone},
			want: VerdictRejectHandshake,
		},
		{
			name: "[Unit] wrong service name rejects at handshake",
			cfg:  Config{Parties: PartiesServer, Signer: SignerSelf, Naming: NamingService, ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchServerName},
			want: VerdictRejectHandshake,
		},
		{
			name: "[Unit] wrong allow-list entry rejects at policy level",
			cfg:  Config{Parties: PartiesMutual, Signer: SignerRoot, Naming: NamingHost, ClientCheck: ClientCheckEnabled, Corruption: CorruptNone, Mismatch: MismatchClientName},
			want: VerdictRejectPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Expected(); got != tt.want {
				t.Errorf("Expected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestU_Expected_NameCheckIdempotence(t *testing.T) {
	// Enabling the name check with the correct identity never changes the
	// verdict of an otherwise-passing scenario.
	for _, c := range EnumerateLegal() {
		if c.Parties != PartiesMutual || c.ClientCheck != ClientCheckDisabled {
			continue
		}
		enabled := c
		enabled.ClientCheck = ClientCheckEnabled
		if _, ok := enabled.Legal(); !ok {
			t.Errorf("%s: enabling the name check should stay legal", c.ID())
		}
		if c.Expected() != enabled.Expected() {
			t.Errorf("%s: verdict changed from %s to %s by enabling the name check",
				c.ID(), c.Expected(), enabled.Expected())
		}
	}
}

// =============================================================================
// Enumeration Tests
// =============================================================================

func TestF_Enumerate_Exhaustive(t *testing.T) {
	all := Enumerate()
	want := len(AllParties) * len(AllSigners) * len(AllNamings) *
		len(AllClientCheck) * len(AllCorruptions) * len(AllMismatches)
	if len(all) != want {
		t.Errorf("Enumerate() yielded %d configs, want %d", len(all), want)
	}

	seen := make(map[string]bool, len(all))
	for _, c := range all {
		if err := c.Validate(); err != nil {
			t.Fatalf("enumerated config invalid: %v", err)
		}
		id := c.ID()
		if seen[id] {
			t.Fatalf("duplicate scenario ID %q", id)
		}
		seen[id] = true
	}
}

func TestF_Enumerate_LegalCountIsStable(t *testing.T) {
	first := EnumerateLegal()
	if len(first) != LegalCount {
		t.Fatalf("EnumerateLegal() yielded %d scenarios, want %d", len(first), LegalCount)
	}

	second := EnumerateLegal()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("enumeration order is not deterministic at index %d", i)
		}
	}
}

func TestU_Filter_Match(t *testing.T) {
	c := Config{Parties: PartiesMutual, Signer: SignerRoot, Naming: NamingHost,
		ClientCheck: ClientCheckDisabled, Corruption: CorruptNone, Mismatch: MismatchNone}

	if !(Filter{}).Match(c) {
		t.Error("empty filter must match everything")
	}
	if !(Filter{Parties: []Parties{PartiesMutual}, Signers: []Signer{SignerRoot}}).Match(c) {
		t.Error("matching filter should match")
	}
	if (Filter{Signers: []Signer{SignerSelf}}).Match(c) {
		t.Error("non-matching filter should not match")
	}
}

func TestU_Filter_Validate(t *testing.T) {
	if err := (Filter{}).Validate(); err != nil {
		t.Errorf("empty filter Validate() error = %v", err)
	}
	ok := Filter{
		Parties:     []Parties{PartiesMutual},
		Signers:     []Signer{SignerRoot, SignerIntermediate},
		Corruptions: []Corruption{CorruptServer},
	}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := []Filter{
		{Parties: []Parties{"everyone"}},
		{Signers: []Signer{"rot"}},
		{Namings: []Naming{"ip"}},
		{ClientCheck: []ClientCheck{"maybe"}},
		{Corruptions: []Corruption{"leaf"}},
		{Mismatches: []Mismatch{"both"}},
	}
	for _, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("Validate(%+v) should reject an out-of-domain value", f)
		}
	}
}

func TestU_ID_Stable(t *testing.T) {
	c := Config{Parties: PartiesMutual, Signer: SignerIntermediate, Naming: NamingService,
		ClientCheck: ClientCheckEnabled, Corruption: CorruptRoot, Mismatch: MismatchNone}
	want := "auth=mutual,signer=intermediate,naming=service,namecheck=enabled,corrupt=root,mismatch=none"
	if c.ID() != want {
		t.Errorf("ID() = %q, want %q", c.ID(), want)
	}
}
