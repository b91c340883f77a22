package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/credentials"
	"github.com/securerpc/tlsmatrix/internal/hierarchy"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/store"
	"github.com/securerpc/tlsmatrix/internal/x509util"
)

// Hierarchy command flags
var (
	hierOut        string
	hierSigner     string
	hierCorrupt    string
	hierNaming     string
	hierMutual     bool
	hierAlgorithm  string
	hierOrg        string
	hierPassphrase string
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy",
	Short: "Generate a certificate hierarchy and save it for inspection",
	Long: `Generate a certificate hierarchy and save it for inspection.

The same assembly path the matrix uses internally, dumped to disk:
leaf certificates, trust anchors, full chains, and private keys.
Corrupted keys are saved under a distinct name and marked in the PEM
headers.

Examples:
  # Root-signed server hierarchy
  tlsmatrix hierarchy --signer root --out ./pki

  # Mutual pair with a corrupted intermediate, encrypted keys
  tlsmatrix hierarchy --signer intermediate --mutual --corrupt intermediate \
    --passphrase secret --out ./pki`,
	RunE: generateHierarchy,
}

func init() {
	hierarchyCmd.Flags().StringVar(&hierOut, "out", "", "Output directory (required)")
	hierarchyCmd.Flags().StringVar(&hierSigner, "signer", "root", "Signer depth: self, root, intermediate")
	hierarchyCmd.Flags().StringVar(&hierCorrupt, "corrupt", "none", "Corrupt a key: none, server, client, root, intermediate")
	hierarchyCmd.Flags().StringVar(&hierNaming, "naming", "host", "Server subject: host or service")
	hierarchyCmd.Flags().BoolVar(&hierMutual, "mutual", false, "Also issue a client leaf")
	hierarchyCmd.Flags().StringVar(&hierAlgorithm, "algorithm", string(keystore.DefaultAlgorithm), "Key algorithm")
	hierarchyCmd.Flags().StringVar(&hierOrg, "org", "tlsmatrix", "Subject organization")
	hierarchyCmd.Flags().StringVar(&hierPassphrase, "passphrase", "", "Encrypt saved private keys")
	_ = hierarchyCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(hierarchyCmd)
}

func generateHierarchy(cmd *cobra.Command, args []string) error {
	alg, err := keystore.ParseAlgorithm(hierAlgorithm)
	if err != nil {
		return err
	}
	depth := hierarchy.SignerDepth(hierSigner)
	if !depth.IsValid() {
		return fmt.Errorf("invalid signer depth %q", hierSigner)
	}

	var caCorrupt hierarchy.CorruptTarget
	switch hierCorrupt {
	case "none", "server", "client":
		caCorrupt = hierarchy.CorruptNone
	case "root":
		caCorrupt = hierarchy.CorruptRoot
	case "intermediate":
		caCorrupt = hierarchy.CorruptIntermediate
	default:
		return fmt.Errorf("invalid corruption target %q", hierCorrupt)
	}
	if hierCorrupt == "client" && !hierMutual {
		return fmt.Errorf("client corruption requires --mutual")
	}

	names := credentials.DefaultNames()
	serverName := names.ServerHost
	if hierNaming == "service" {
		serverName = names.Service
	} else if hierNaming != "host" {
		return fmt.Errorf("invalid naming %q", hierNaming)
	}

	ks, err := keystore.New(alg)
	if err != nil {
		return err
	}
	asm := hierarchy.NewAssembler(ks, hierOrg)

	auth, err := asm.NewAuthority(depth, caCorrupt)
	if err != nil {
		return err
	}
	server, err := asm.IssueLeaf(auth, keystore.RoleServer,
		x509util.SubjectIdentity{Name: serverName}, hierCorrupt == "server")
	if err != nil {
		return err
	}

	var client *hierarchy.Result
	if hierMutual {
		client, err = asm.IssueLeaf(auth, keystore.RoleClient,
			x509util.SubjectIdentity{Name: names.Client}, hierCorrupt == "client")
		if err != nil {
			return err
		}
	}

	st := store.NewStore(hierOut)
	if err := st.Init(); err != nil {
		return err
	}

	id := fmt.Sprintf("signer=%s,corrupt=%s", depth, hierCorrupt)
	var passphrase []byte
	if hierPassphrase != "" {
		passphrase = []byte(hierPassphrase)
	}

	if err := st.SaveArtifacts(id, "server", server, passphrase); err != nil {
		return err
	}
	fmt.Printf("server: %s (chain length %d)\n", st.CertPath(id, "server"), len(server.Chain))
	if client != nil {
		if err := st.SaveArtifacts(id, "client", client, passphrase); err != nil {
			return err
		}
		fmt.Printf("client: %s (chain length %d)\n", st.CertPath(id, "client"), len(client.Chain))
	}

	// Report what a verifier would conclude about the dumped material.
	if err := server.Verify(); err != nil {
		fmt.Printf("server chain does NOT verify: %v\n", err)
	} else {
		fmt.Println("server chain verifies")
	}
	if client != nil {
		if err := client.Verify(); err != nil {
			fmt.Printf("client chain does NOT verify: %v\n", err)
		} else {
			fmt.Println("client chain verifies")
		}
	}
	return nil
}
