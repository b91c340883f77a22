// Package store persists generated hierarchies and run reports on the
// filesystem so a run can be inspected after the fact.
package store

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/securerpc/tlsmatrix/internal/hierarchy"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// Store manages artifact storage on the filesystem.
// Directory structure:
//
//	{base}/
//	  ├── index.txt              # One line per saved artifact set
//	  ├── report.json            # Last run report, if saved
//	  └── {scenario}/
//	      ├── certs/             # Leaf and anchor certificates
//	      │   ├── {role}.crt
//	      │   └── {role}-anchor.crt
//	      ├── chains/            # Full ordered chains
//	      │   └── {role}-chain.pem
//	      └── private/           # Private keys, corrupted ones marked
//	          └── {role}.key
type Store struct {
	basePath string
}

// NewStore creates a store rooted at the given path.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// Init creates the store root and its index.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	indexPath := s.indexPath()
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		if err := os.WriteFile(indexPath, []byte(""), 0o644); err != nil {
			return fmt.Errorf("failed to create index file: %w", err)
		}
	}
	return nil
}

// BasePath returns the root of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

// Exists reports whether the store has been initialized.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.indexPath())
	return err == nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.basePath, "index.txt")
}

func (s *Store) scenarioDir(scenarioID string) string {
	return filepath.Join(s.basePath, scenarioID)
}

// CertPath returns the path of a saved leaf certificate.
func (s *Store) CertPath(scenarioID, role string) string {
	return filepath.Join(s.scenarioDir(scenarioID), "certs", role+".crt")
}

// AnchorPath returns the path of a saved trust anchor.
func (s *Store) AnchorPath(scenarioID, role string) string {
	return filepath.Join(s.scenarioDir(scenarioID), "certs", role+"-anchor.crt")
}

// ChainPath returns the path of a saved certificate chain.
func (s *Store) ChainPath(scenarioID, role string) string {
	return filepath.Join(s.scenarioDir(scenarioID), "chains", role+"-chain.pem")
}

// KeyPath returns the path of a saved private key. Corrupted keys get a
// distinct suffix so a directory listing already tells the story.
func (s *Store) KeyPath(scenarioID, role string, corrupted bool) string {
	name := role + ".key"
	if corrupted {
		name = role + ".corrupt.key"
	}
	return filepath.Join(s.scenarioDir(scenarioID), "private", name)
}

// SaveArtifacts persists one assembled hierarchy under the scenario
// directory: leaf, anchor, full chain, and the usable private key. A
// non-empty passphrase encrypts the key at rest.
func (s *Store) SaveArtifacts(scenarioID, role string, res *hierarchy.Result, passphrase []byte) error {
	dir := s.scenarioDir(scenarioID)
	for _, sub := range []string{"certs", "chains", "private"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", sub, err)
		}
	}

	if err := os.WriteFile(s.CertPath(scenarioID, role), x509util.EncodeCertificatePEM(res.Leaf), 0o644); err != nil {
		return fmt.Errorf("failed to write leaf certificate: %w", err)
	}
	if err := os.WriteFile(s.AnchorPath(scenarioID, role), x509util.EncodeCertificatePEM(res.Anchor), 0o644); err != nil {
		return fmt.Errorf("failed to write anchor certificate: %w", err)
	}
	if err := os.WriteFile(s.ChainPath(scenarioID, role), x509util.EncodeCertificatesPEM(res.Chain), 0o644); err != nil {
		return fmt.Errorf("failed to write chain: %w", err)
	}

	var headers map[string]string
	if res.LeafKey.Corrupted() {
		headers = map[string]string{keystore.HeaderCorrupted: "true"}
	}
	keyPEM, err := keystore.MarshalPrivateKeyPEM(res.LeafKey.Private, passphrase, headers)
	if err != nil {
		return err
	}
	keyPath := s.KeyPath(scenarioID, role, res.LeafKey.Corrupted())
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	return s.appendIndex(scenarioID, role, res)
}

// LoadCert loads a saved leaf certificate.
func (s *Store) LoadCert(scenarioID, role string) (*x509.Certificate, error) {
	data, err := os.ReadFile(s.CertPath(scenarioID, role))
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	return x509util.ParseCertificatePEM(data)
}

// LoadChain loads a saved chain, leaf first.
func (s *Store) LoadChain(scenarioID, role string) (hierarchy.Chain, error) {
	data, err := os.ReadFile(s.ChainPath(scenarioID, role))
	if err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	certs, err := x509util.ParseCertificatesPEM(data)
	if err != nil {
		return nil, err
	}
	return hierarchy.Chain(certs), nil
}

// appendIndex records one saved artifact set.
// Format: scenario\trole\tsubject\tcorrupted
func (s *Store) appendIndex(scenarioID, role string, res *hierarchy.Result) error {
	f, err := os.OpenFile(s.indexPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entry := fmt.Sprintf("%s\t%s\t%s\t%t\n",
		scenarioID, role, res.Leaf.Subject.CommonName, res.LeafKey.Corrupted())
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write index entry: %w", err)
	}
	return nil
}

// IndexEntry is one line of the artifact index.
type IndexEntry struct {
	Scenario  string
	Role      string
	Subject   string
	Corrupted bool
}

// ReadIndex reads all entries from the index file.
func (s *Store) ReadIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var entries []IndexEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 4 {
			continue // Skip malformed entries
		}
		entries = append(entries, IndexEntry{
			Scenario:  parts[0],
			Role:      parts[1],
			Subject:   parts[2],
			Corrupted: parts[3] == "true",
		})
	}
	return entries, nil
}

// ReportPath returns the path of the saved run report.
func (s *Store) ReportPath() string {
	return filepath.Join(s.basePath, "report.json")
}

// SaveReport persists a run report as JSON.
func (s *Store) SaveReport(report interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(s.ReportPath(), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LoadReport reads the saved run report into the given value.
func (s *Store) LoadReport(into interface{}) error {
	data, err := os.ReadFile(s.ReportPath())
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	return json.Unmarshal(data, into)
}
