package scenario

import (
	"fmt"

	cartesian "github.com/schwarmco/go-cartesian-product"
)

// LegalCount is the number of executable scenarios in the full matrix:
// one plaintext case, 6 server-authenticated and 12 mutually
// authenticated positives, 48 corrupted-key negatives and 24
// name-mismatch negatives. The enumeration is deterministic, so tests
// pin this constant.
const LegalCount = 91

// Enumerate yields the full Cartesian product of all six dimensions in a
// fixed order, illegal combinations included.
func Enumerate() []Config {
	products := cartesian.Iter(
		toAny(AllParties),
		toAny(AllSigners),
		toAny(AllNamings),
		toAny(AllClientCheck),
		toAny(AllCorruptions),
		toAny(AllMismatches),
	)

	var configs []Config
	for p := range products {
		configs = append(configs, Config{
			Parties:     p[0].(Parties),
			Signer:      p[1].(Signer),
			Naming:      p[2].(Naming),
			ClientCheck: p[3].(ClientCheck),
			Corruption:  p[4].(Corruption),
			Mismatch:    p[5].(Mismatch),
		})
	}
	return configs
}

// EnumerateLegal yields only executable scenarios.
func EnumerateLegal() []Config {
	var out []Config
	for _, c := range Enumerate() {
		if _, ok := c.Legal(); ok {
			out = append(out, c)
		}
	}
	return out
}

// Filter restricts a matrix run to a subset of each dimension's values.
// An empty slice leaves the dimension unrestricted.
type Filter struct {
	Parties     []Parties     `json:"parties,omitempty" yaml:"parties"`
	Signers     []Signer      `json:"signers,omitempty" yaml:"signers"`
	Namings     []Naming      `json:"namings,omitempty" yaml:"namings"`
	ClientCheck []ClientCheck `json:"client_check,omitempty" yaml:"client_check"`
	Corruptions []Corruption  `json:"corruptions,omitempty" yaml:"corruptions"`
	Mismatches  []Mismatch    `json:"mismatches,omitempty" yaml:"mismatches"`
}

// Validate checks every filter value against its dimension's domain, so
// a typo fails loudly instead of silently selecting nothing.
func (f Filter) Validate() error {
	for _, v := range f.Parties {
		if !contains(AllParties, v) {
			return fmt.Errorf("invalid parties filter value %q", v)
		}
	}
	for _, v := range f.Signers {
		if !contains(AllSigners, v) {
			return fmt.Errorf("invalid signers filter value %q", v)
		}
	}
	for _, v := range f.Namings {
		if !contains(AllNamings, v) {
			return fmt.Errorf("invalid namings filter value %q", v)
		}
	}
	for _, v := range f.ClientCheck {
		if !contains(AllClientCheck, v) {
			return fmt.Errorf("invalid client_check filter value %q", v)
		}
	}
	for _, v := range f.Corruptions {
		if !contains(AllCorruptions, v) {
			return fmt.Errorf("invalid corruptions filter value %q", v)
		}
	}
	for _, v := range f.Mismatches {
		if !contains(AllMismatches, v) {
			return fmt.Errorf("invalid mismatches filter value %q", v)
		}
	}
	return nil
}

// Match reports whether the config passes the filter.
func (f Filter) Match(c Config) bool {
	return matchDim(f.Parties, c.Parties) &&
		matchDim(f.Signers, c.Signer) &&
		matchDim(f.Namings, c.Naming) &&
		matchDim(f.ClientCheck, c.ClientCheck) &&
		matchDim(f.Corruptions, c.Corruption) &&
		matchDim(f.Mismatches, c.Mismatch)
}

func matchDim[T comparable](allowed []T, v T) bool {
	if len(allowed) == 0 {
		return true
	}
	return contains(allowed, v)
}

func toAny[T any](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
