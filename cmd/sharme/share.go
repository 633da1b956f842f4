package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/share"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/internal/syncengine"
)

func shareCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "share", Short: "issue or redeem one-shot conversation share links"}
	cmd.AddCommand(shareIssueCmd())
	cmd.AddCommand(shareRedeemCmd())
	return cmd
}

func shareIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue <conversation-id>",
		Short: "encrypt, sign, and upload a conversation, returning a redeemable link",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareIssue,
	}
	addPhraseFlag(cmd)
	cmd.Flags().String("file", "", "JSON transcript file ({client,project,messages:[{role,content}]}) (required)")
	return cmd
}

func runShareIssue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	phrase, err := resolvePhrase(cmd)
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return fmt.Errorf("--file is required: path to a JSON transcript to share")
	}

	sess, err := openSession(cfg, phrase)
	if err != nil {
		return err
	}
	defer sess.Close()

	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var conv syncengine.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return err
	}
	conv.ID = args[0]

	_, ub := archiveAndUpload(cfg)
	iss := &share.Issuer{Upload: ub, ID: sess.id}
	_, url, err := iss.Issue(cmd.Context(), conv)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func shareRedeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <url>",
		Short: "redeem a sharme:// share link and record the import",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareRedeem,
	}
}

func runShareRedeem(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(cfg.Home, dbFileName))
	if err != nil {
		return err
	}
	defer st.Close()

	ac := archive.New(cfg.Archive.GQLEndpoints, cfg.Archive.DataEndpoints, 30*time.Second)
	red := &share.Redeemer{Archive: ac, Store: st}
	payload, err := red.Redeem(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported conversation %s (%d messages)\n", payload.Conversation.ID, len(payload.Conversation.Messages))
	return nil
}
