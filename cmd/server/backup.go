package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/pkg/models"
)

var (
	backupDescription string
	backupForce       bool
	importForce       bool
)

var backupCmd = &cobra.Command{
	Use:   "backup [name]",
	Short: "Save a backup of all users, snippets and tags",
	Long: `Save a gzip-compressed JSON backup to backup.dir. Without a name the
backup is named after the current time. Use "backup list" to see saved backups.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "backup-" + time.Now().UTC().Format("20060102-150405")
		if len(args) == 1 {
			name = args[0]
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		viewers := analytics.NewUniqueViewers()
		loadViewers(viewers)

		backups, err := openBackups(store, viewers)
		if err != nil {
			return err
		}

		meta, err := backups.Create(cmd.Context(), models.BackupSaveOptions{
			Name:        name,
			Description: backupDescription,
			Force:       backupForce,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %d users, %d snippets, %d tags (%d bytes)\n",
			meta.ID, meta.Stats.Users, meta.Stats.Snippets, meta.Stats.Tags, meta.SizeBytes)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		backups, err := openBackups(store, nil)
		if err != nil {
			return err
		}

		list, err := backups.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tUSERS\tSNIPPETS\tTAGS\tDESCRIPTION")
		for _, m := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				m.ID, m.Created.Format(time.RFC3339), m.Stats.Users, m.Stats.Snippets, m.Stats.Tags, m.Description)
		}
		return w.Flush()
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Replace all stored data with a saved backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		viewers := analytics.NewUniqueViewers()
		backups, err := openBackups(store, viewers)
		if err != nil {
			return err
		}

		result, err := backups.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := saveViewers(viewers); err != nil {
			return fmt.Errorf("saving viewer sketches: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "restored %s: %d users, %d snippets, %d tags\n",
			result.BackupID, result.Stats.Users, result.Stats.Snippets, result.Stats.Tags)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load users, snippets and tags from a JSON export",
	Long: `Load a JSON document of the form {"users": [...], "snippets": [...], "tags": [...]}
into the configured store. Tag and snippet counters are recomputed. The store
must be empty unless --force is given, in which case its contents are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var ds models.Dataset
		if err := json.Unmarshal(raw, &ds); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if !importForce {
			current, err := store.Snapshot(ctx)
			if err != nil {
				return err
			}
			if len(current.Users) > 0 || len(current.Snippets) > 0 {
				return errors.New("store is not empty; use --force to replace its contents")
			}
		}

		if err := store.Restore(ctx, &ds); err != nil {
			return fmt.Errorf("importing: %w", err)
		}

		stats := ds.Stats()
		logger.Info("import complete", "file", args[0], "users", stats.Users, "snippets", stats.Snippets)
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d users, %d snippets\n", stats.Users, stats.Snippets)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupDescription, "description", "d", "", "backup description")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "overwrite an existing backup with the same name")
	backupCmd.AddCommand(backupListCmd)

	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "replace existing data")
}
