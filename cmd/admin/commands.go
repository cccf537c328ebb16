package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ensureIndexCmd = &cobra.Command{
	Use:   "ensure-index",
	Short: "Create the vector index, recreating it on dimension mismatch",
	Args:  cobra.NoArgs,
	RunE:  runEnsureIndex,
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete-session [session-id]",
	Short: "Remove a session's vectors, records and uploaded file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteSession,
}

var listDocumentsCmd = &cobra.Command{
	Use:   "list-documents",
	Short: "List uploaded documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListDocuments,
}

func init() {
	rootCmd.AddCommand(ensureIndexCmd)
	rootCmd.AddCommand(deleteSessionCmd)
	rootCmd.AddCommand(listDocumentsCmd)
}

func runEnsureIndex(cmd *cobra.Command, args []string) error {
	index, closeFn, err := openIndex(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := index.EnsureIndex(cmd.Context()); err != nil {
		return fmt.Errorf("ensuring index %s: %w", index.IndexName(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Index %s is ready\n", index.IndexName())
	return nil
}

func runDeleteSession(cmd *cobra.Command, args []string) error {
	sessions, closeFn, err := openSessions(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := sessions.Destroy(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting session %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s cleared\n", args[0])
	return nil
}

func runListDocuments(cmd *cobra.Command, args []string) error {
	docs, closeFn, err := openDocuments(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := docs.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tFILENAME\tCHUNKS\tUPLOADED")
	for _, d := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.SessionId, d.Filename, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
