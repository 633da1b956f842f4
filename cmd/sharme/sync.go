package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sharme-dev/sharme/internal/store"
)

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "upload dirty facts and pending deletes as chunked shards",
		Args:  cobra.NoArgs,
		RunE:  runPush,
	}
	addPhraseFlag(cmd)
	return cmd
}

func runPush(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	phrase, err := resolvePhrase(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, phrase)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.engine().Push(cmd.Context()); err != nil {
		return err
	}
	if err := sess.engine().SyncConversations(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "push complete")
	return nil
}

func pullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "query, verify, and replay remote shards into the local store",
		Args:  cobra.NoArgs,
		RunE:  runPull,
	}
	addPhraseFlag(cmd)
	return cmd
}

func runPull(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	phrase, err := resolvePhrase(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, phrase)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.engine().Pull(cmd.Context()); err != nil {
		return err
	}
	convs, err := sess.engine().PullConversations(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pull complete, reconstructed %d conversation(s)\n", len(convs))
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print local wallet address and sync bookkeeping",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return err
	}
	defer st.Close()

	address, _, _ := st.GetMeta(store.MetaWalletAddress)
	current, _, _ := st.GetMeta(store.MetaCurrentVersion)
	lastPushed, _, _ := st.GetMeta(store.MetaLastPushedVersion)
	dirty, err := st.GetDirtyFacts()
	if err != nil {
		return err
	}
	pending, err := st.GetPendingDeletes()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "home: %s\n", cfg.Home)
	fmt.Fprintf(cmd.OutOrStdout(), "wallet: %s\n", address)
	fmt.Fprintf(cmd.OutOrStdout(), "current_version: %s  last_pushed_version: %s\n", current, lastPushed)
	fmt.Fprintf(cmd.OutOrStdout(), "dirty facts: %d  pending deletes: %d\n", len(dirty), len(pending))
	return nil
}
