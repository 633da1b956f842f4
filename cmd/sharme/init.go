package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/identity"
	"github.com/sharme-dev/sharme/internal/sharmeerrors"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/internal/syncengine"
	"github.com/sharme-dev/sharme/internal/upload"
	"github.com/sharme-dev/sharme/pkg/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create a new identity, or recover one from an existing phrase",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	cmd.Flags().String("existing", "", "recover from an existing 12-word phrase instead of generating a new one")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Home); err == nil {
		return fmt.Errorf("%s already exists; remove it first to re-init", cfg.Home)
	}

	existing, _ := cmd.Flags().GetString("existing")
	if existing != "" {
		return initExisting(cmd, cfg, existing)
	}
	return initFresh(cmd, cfg)
}

// initFresh generates a new phrase, derives identity and encryption key
// under a fresh salt, persists them, and publishes an identity record so
// other devices can later recover the same salt via --existing.
func initFresh(cmd *cobra.Command, cfg *config.Config) error {
	phrase, err := identity.NewPhrase()
	if err != nil {
		return err
	}
	kp, err := identity.DeriveKeypair(phrase)
	if err != nil {
		return err
	}
	salt, err := cryptoutil.NewSalt()
	if err != nil {
		return err
	}
	aesKey := cryptoutil.DeriveKey(phrase, salt)

	if err := setupHome(cfg, salt, aesKey, kp.PrivateKey); err != nil {
		return err
	}

	_, ub := archiveAndUpload(cfg)
	if err := publishIdentity(cmd.Context(), ub, kp, salt, aesKey); err != nil {
		os.RemoveAll(cfg.Home)
		return sharmeerrors.Wrap(sharmeerrors.NetworkUnavailable, "publish identity record", err)
	}
	if err := openAndSeedMeta(cfg, kp.Address); err != nil {
		os.RemoveAll(cfg.Home)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "recovery phrase (write it down, it is never stored):")
	fmt.Fprintln(cmd.OutOrStdout(), phrase)
	fmt.Fprintf(cmd.OutOrStdout(), "wallet address: %s\n", kp.Address)
	return nil
}

// initExisting recovers a device from a known phrase: it fetches the
// identity record from the archive to learn the original salt, verifies
// the phrase derives the same private key the record carries, and
// persists locally. This is a single-object critical path: any failure
// tears down the partially-created SHARME_HOME.
func initExisting(cmd *cobra.Command, cfg *config.Config, phrase string) error {
	if err := identity.ValidatePhrase(phrase); err != nil {
		return err
	}
	kp, err := identity.DeriveKeypair(phrase)
	if err != nil {
		return err
	}

	ac, ub := archiveAndUpload(cfg)
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return err
	}

	record, err := syncengine.New(nil, ac, nil, syncengine.Identity{}, nil, 0, 0).FetchIdentity(ctx, kp.Address)
	if err != nil {
		os.RemoveAll(cfg.Home)
		return err
	}
	salt, err := hexDecode(record.Salt)
	if err != nil {
		os.RemoveAll(cfg.Home)
		return sharmeerrors.New(sharmeerrors.StoreCorruption, "identity record salt is not valid hex")
	}
	aesKey := cryptoutil.DeriveKey(phrase, salt)
	decrypted, err := cryptoutil.Decrypt(record.EncryptedPrivateKey, aesKey)
	if err != nil || !bytesEqual(decrypted, kp.PrivateKey) {
		os.RemoveAll(cfg.Home)
		return sharmeerrors.New(sharmeerrors.InvalidPhrase, "remote identity record does not match this phrase")
	}

	if err := writeHomeFiles(cfg, salt, aesKey, kp.PrivateKey); err != nil {
		os.RemoveAll(cfg.Home)
		return err
	}
	if err := openAndSeedMeta(cfg, kp.Address); err != nil {
		os.RemoveAll(cfg.Home)
		return err
	}
	_ = ub // no upload needed: the identity record already exists remotely

	fmt.Fprintf(cmd.OutOrStdout(), "recovered wallet address: %s\n", kp.Address)
	fmt.Fprintln(cmd.OutOrStdout(), "run `sharme pull --phrase ...` to reconstruct local state")
	return nil
}

func setupHome(cfg *config.Config, salt, aesKey, privateKey []byte) error {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return err
	}
	return writeHomeFiles(cfg, salt, aesKey, privateKey)
}

func writeHomeFiles(cfg *config.Config, salt, aesKey, privateKey []byte) error {
	if err := os.MkdirAll(filepath.Join(cfg.Home, "shards"), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(cfg.Home, saltFileName), salt, 0o600); err != nil {
		return err
	}
	envelope, err := cryptoutil.Encrypt(privateKey, aesKey)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.Home, identityFileName), envelope, 0o600)
}

func openAndSeedMeta(cfg *config.Config, address string) error {
	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SetMeta(store.MetaWalletAddress, address); err != nil {
		return err
	}
	return st.SetMeta(store.MetaCreated, strconv.FormatInt(nowUnix(), 10))
}

// publishIdentity uploads the identity-typed record a future --existing
// recovery fetches: its data is the same private-key envelope persisted
// locally, and its Salt tag carries the salt in hex so a recovering device
// can re-derive the same AES key.
func publishIdentity(ctx context.Context, ub upload.Backend, kp *identity.Keypair, salt, aesKey []byte) error {
	envelope, err := cryptoutil.Encrypt(kp.PrivateKey, aesKey)
	if err != nil {
		return err
	}
	sig, err := cryptoutil.Sign(envelope, kp.PrivateKey)
	if err != nil {
		return err
	}
	tags := map[string]string{
		"App-Name":     "sharme",
		"Wallet":       kp.Address,
		"Type":         "identity",
		"Salt":         hexEncode(salt),
		"Timestamp":    strconv.FormatInt(nowUnix(), 10),
		"Signature":    sig,
		"Content-Type": "application/octet-stream",
	}
	_, err = ub.Upload(ctx, envelope, tags)
	return err
}

