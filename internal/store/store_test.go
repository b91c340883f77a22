package store

import (
	"crypto"
	"os"
	"strings"
	"testing"

	"github.com/securerpc/tlsmatrix/internal/hierarchy"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

func testResult(t *testing.T, corrupt hierarchy.CorruptTarget) *hierarchy.Result {
	t.Helper()
	ks, err := keystore.New(keystore.AlgECDSAP256)
	if err != nil {
		t.Fatalf("keystore.New() error = %v", err)
	}
	res, err := hierarchy.NewAssembler(ks, "tlsmatrix-test").Assemble(
		keystore.RoleServer, hierarchy.DepthRoot,
		x509util.SubjectIdentity{Name: "server.test"}, corrupt)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return res
}

// =============================================================================
// Artifact Persistence Tests
// =============================================================================

func TestU_Store_Init(t *testing.T) {
	s := NewStore(t.TempDir() + "/artifacts")
	if s.Exists() {
		t.Error("store should not exist before Init")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !s.Exists() {
		t.Error("store should exist after Init")
	}
}

func TestF_Store_SaveAndLoadArtifacts(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	res := testResult(t, hierarchy.CorruptNone)
	if err := s.SaveArtifacts("auth=server,signer=root", "server", res, nil); err != nil {
		t.Fatalf("SaveArtifacts() error = %v", err)
	}

	leaf, err := s.LoadCert("auth=server,signer=root", "server")
	if err != nil {
		t.Fatalf("LoadCert() error = %v", err)
	}
	if !leaf.Equal(res.Leaf) {
		t.Error("loaded leaf differs from saved leaf")
	}

	chain, err := s.LoadChain("auth=server,signer=root", "server")
	if err != nil {
		t.Fatalf("LoadChain() error = %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("chain length = %d, want 2", len(chain))
	}

	entries, err := s.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("index entries = %d, want 1", len(entries))
	}
	if entries[0].Role != "server" || entries[0].Corrupted {
		t.Errorf("unexpected index entry %+v", entries[0])
	}
}

func TestU_Store_CorruptedKeyIsMarked(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	res := testResult(t, hierarchy.CorruptLeaf)
	if err := s.SaveArtifacts("corrupt", "server", res, nil); err != nil {
		t.Fatalf("SaveArtifacts() error = %v", err)
	}

	path := s.KeyPath("corrupt", "server", true)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("corrupted key missing at %s: %v", path, err)
	}
	if !strings.Contains(string(data), keystore.HeaderCorrupted+": true") {
		t.Error("corrupted key PEM must carry the corruption header")
	}

	entries, err := s.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].Corrupted {
		t.Errorf("index should mark the artifact corrupted: %+v", entries)
	}
}

func TestU_Store_EncryptedKeyRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	res := testResult(t, hierarchy.CorruptNone)
	if err := s.SaveArtifacts("enc", "server", res, []byte("passphrase")); err != nil {
		t.Fatalf("SaveArtifacts() error = %v", err)
	}

	data, err := os.ReadFile(s.KeyPath("enc", "server", false))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	key, err := keystore.ParsePrivateKeyPEM(data, []byte("passphrase"))
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM() error = %v", err)
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		t.Fatalf("parsed public key of type %T cannot be compared", key.Public())
	}
	if !pub.Equal(res.LeafKey.Private.Public()) {
		t.Error("decrypted key does not match the saved key")
	}
}

// =============================================================================
// Report Persistence Tests
// =============================================================================

func TestU_Store_ReportRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	type report struct {
		Passed int `json:"passed"`
		Failed int `json:"failed"`
	}
	if err := s.SaveReport(report{Passed: 19}); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	var got report
	if err := s.LoadReport(&got); err != nil {
		t.Fatalf("LoadReport() error = %v", err)
	}
	if got.Passed != 19 || got.Failed != 0 {
		t.Errorf("loaded report = %+v", got)
	}
}
