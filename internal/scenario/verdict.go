package scenario

// Verdict is the expected or observed result of one connection attempt.
type Verdict string

const (
	// VerdictAccept: handshake and any policy check both succeed.
	VerdictAccept Verdict = "accept"
	// VerdictRejectHandshake: cryptographic failure during establishment.
	VerdictRejectHandshake Verdict = "reject-handshake"
	// VerdictRejectPolicy: refusal after a successful handshake based on
	// the server's client-name allow-list.
	VerdictRejectPolicy Verdict = "reject-policy"
)

// Expected computes the verdict a legal scenario must produce, before any
// handshake runs.
//
// An unauthenticated connection always succeeds: no verification occurs,
// so corruption is irrelevant. Any corrupted key in the active trust path
// breaks the handshake. A wrong server-name expectation also breaks the
// handshake, because the client rejects the certificate during
// establishment. A wrong allow-list entry is only detected after the
// handshake and rejects at the policy level.
func (c Config) Expected() Verdict {
	if c.Parties == PartiesNone {
		return VerdictAccept
	}
	if c.Corruption != CorruptNone {
		return VerdictRejectHandshake
	}
	switch c.Mismatch {
	case MismatchServerName:
		return VerdictRejectHandshake
	case MismatchClientName:
		return VerdictRejectPolicy
	}
	return VerdictAccept
}
