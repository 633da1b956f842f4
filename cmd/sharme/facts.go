package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharme-dev/sharme/internal/store"
)

func upsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upsert <key> <value>",
		Short: "insert or replace a fact",
		Args:  cobra.ExactArgs(2),
		RunE:  runUpsert,
	}
	cmd.Flags().String("scope", "global", "global or project:<name>")
	cmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	cmd.Flags().Float64("confidence", 1.0, "confidence in [0,1]")
	cmd.Flags().String("session", "", "source session id")
	return cmd
}

func runUpsert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return err
	}
	defer st.Close()

	scope, _ := cmd.Flags().GetString("scope")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	session, _ := cmd.Flags().GetString("session")
	now := time.Now().UTC().Format(time.RFC3339)

	key, value := args[0], args[1]
	existing, err := st.GetFact(key)
	if err != nil {
		return err
	}
	created := now
	if existing != nil {
		created = existing.Created
	}

	err = st.UpsertFact(store.Fact{
		ID: key, Scope: scope, Key: key, Value: value, Tags: tags,
		Confidence: confidence, SourceSession: session,
		Created: created, LastConfirmed: now,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "upserted %s\n", key)
	return nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "look up a fact by key",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := st.GetFact(args[0])
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("no fact for key %q", args[0])
	}
	if err := st.IncrementAccessCount(f.Key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", f.Key, f.Value)
	if len(f.Tags) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "tags: %s\n", strings.Join(f.Tags, ", "))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scope: %s  confidence: %.2f  dirty: %v\n", f.Scope, f.Confidence, f.Dirty)
	return nil
}
