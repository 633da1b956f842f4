// Command sharme is the thin cobra entry point over the sync engine: the
// "CLI surface" SPEC_FULL.md §2 Z2 adds only so the engine has something to
// drive it end to end. It is not part of the core's correctness surface.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/identity"
	"github.com/sharme-dev/sharme/internal/sharmeerrors"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/internal/syncengine"
	"github.com/sharme-dev/sharme/internal/upload"
	"github.com/sharme-dev/sharme/pkg/config"
	"github.com/sharme-dev/sharme/pkg/logging"
)

const (
	saltFileName     = "salt"
	identityFileName = "identity.enc"
	dbFileName       = "db"
)

// session bundles the collaborators every non-init command needs: the
// local store, an archive client, an upload backend, and the unlocked
// in-memory identity.
type session struct {
	cfg     *config.Config
	store   *store.Store
	archive *archive.Client
	upload  upload.Backend
	id      syncengine.Identity
	aesKey  []byte
}

func (s *session) engine() *syncengine.Engine {
	e := syncengine.New(s.store, s.archive, s.upload, s.id, syncengine.StaticWatcher{},
		time.Duration(s.cfg.Sync.PushIntervalSeconds)*time.Second,
		time.Duration(s.cfg.Sync.WatchIntervalSeconds)*time.Second)
	e.AESKey = s.aesKey
	return e
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "sharme",
		Short:         "sovereign, portable memory for LLM-assisted development",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(initCmd())
	root.AddCommand(upsertCmd())
	root.AddCommand(getCmd())
	root.AddCommand(pushCmd())
	root.AddCommand(pullCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(shareCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfigAndLogging loads config and applies its logging level; every
// subcommand starts from this.
func loadConfigAndLogging() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

func archiveAndUpload(cfg *config.Config) (*archive.Client, upload.Backend) {
	ac := archive.New(cfg.Archive.GQLEndpoints, cfg.Archive.DataEndpoints, 30*time.Second)
	ub := upload.NewHTTPBackend(cfg.Archive.Testnet, 30*time.Second)
	return ac, ub
}

// openSession opens the local store, reads the persisted salt, derives the
// identity and AES key from phrase, and checks the derivation against the
// persisted identity.enc envelope so a wrong phrase fails loudly with
// InvalidPhrase rather than silently producing garbage ciphertext later.
func openSession(cfg *config.Config, phrase string) (*session, error) {
	if err := identity.ValidatePhrase(phrase); err != nil {
		return nil, err
	}
	kp, err := identity.DeriveKeypair(phrase)
	if err != nil {
		return nil, err
	}

	salt, err := os.ReadFile(filepath.Join(cfg.Home, saltFileName))
	if err != nil {
		return nil, sharmeerrors.Wrap(sharmeerrors.NotInitialized, "read salt (run sharme init first)", err)
	}
	aesKey := cryptoutil.DeriveKey(phrase, salt)

	envelope, err := os.ReadFile(filepath.Join(cfg.Home, identityFileName))
	if err != nil {
		return nil, sharmeerrors.Wrap(sharmeerrors.NotInitialized, "read identity.enc (run sharme init first)", err)
	}
	decrypted, err := cryptoutil.Decrypt(envelope, aesKey)
	if err != nil || !bytesEqual(decrypted, kp.PrivateKey) {
		return nil, sharmeerrors.New(sharmeerrors.InvalidPhrase, "phrase does not match this device's identity")
	}

	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return nil, err
	}
	ac, ub := archiveAndUpload(cfg)

	return &session{
		cfg: cfg, store: st, archive: ac, upload: ub, aesKey: aesKey,
		id: syncengine.Identity{PrivateKey: kp.PrivateKey, PublicKey: kp.PublicKey, Address: kp.Address},
	}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func resolvePhrase(cmd *cobra.Command) (string, error) {
	phrase, _ := cmd.Flags().GetString("phrase")
	if phrase == "" {
		phrase = os.Getenv("SHARME_PHRASE")
	}
	if phrase == "" {
		return "", sharmeerrors.New(sharmeerrors.InvalidPhrase, "--phrase or SHARME_PHRASE required")
	}
	return phrase, nil
}

func addPhraseFlag(cmd *cobra.Command) {
	cmd.Flags().String("phrase", "", "12-word recovery phrase (or set SHARME_PHRASE)")
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexDecode(s string) ([]byte, error) { return hex.DecodeString(s) }

func nowUnix() int64 { return time.Now().Unix() }
