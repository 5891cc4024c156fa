package main

import (
	"fmt"
	"time"

	"github.com/annebeks/prepsim/internal/backup"
	"github.com/annebeks/prepsim/internal/store"
	"github.com/spf13/cobra"
)

// backupDir returns --dir or the default backup directory.
func backupDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir, nil
	}
	return backup.DefaultDir()
}

func newHistoryBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the results database to a timestamped backup",
		Long: `Write a consistent copy of the results database to the backup directory
(~/.prepsim/backups by default). With --keep or --max-age, older backups are
pruned afterwards; a backup is kept if either rule keeps it.

Examples:
  prepsim history backup
  prepsim history backup --keep 5 --max-age 30d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, err := backupDir(cmd)
			if err != nil {
				return err
			}
			policy, err := retentionPolicy(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, func(a *app, st *store.SQLiteStore) error {
				info, err := backup.Backup(cmd.Context(), st, dir)
				if err != nil {
					return err
				}
				a.logger.Info("store backed up", "path", info.Path, "size", info.Size)

				var pruned []string
				if policy != nil {
					if pruned, err = backup.Prune(dir, policy); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return encodeJSON(out, struct {
						Backup backup.Info `json:"backup"`
						Pruned []string    `json:"pruned"`
					}{info, nonNil(pruned)})
				}
				fmt.Fprintf(out, "Backup written to %s (%s)\n", info.Path, formatSize(info.Size))
				for _, p := range pruned {
					fmt.Fprintf(out, "Pruned %s\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("dir", "", "Backup directory (default ~/.prepsim/backups)")
	cmd.Flags().Int("keep", 0, "Keep at most this many backups (0 keeps all)")
	cmd.Flags().String("max-age", "", "Also keep backups younger than this (e.g. 30d, 2w, 72h)")

	return cmd
}

// retentionPolicy builds the pruning rule from --keep and --max-age, or nil
// when neither is set.
func retentionPolicy(cmd *cobra.Command) (backup.RetentionPolicy, error) {
	keep, _ := cmd.Flags().GetInt("keep")
	maxAge, _ := cmd.Flags().GetString("max-age")
	if keep < 0 {
		return nil, fmt.Errorf("--keep must be non-negative, got %d", keep)
	}

	var policy backup.AnyPolicy
	if keep > 0 {
		policy = append(policy, backup.CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := backup.ParseDuration(maxAge)
		if err != nil {
			return nil, fmt.Errorf("--max-age: %w", err)
		}
		policy = append(policy, backup.AgePolicy{MaxAge: d})
	}
	if len(policy) == 0 {
		return nil, nil
	}
	return policy, nil
}

func newHistoryBackupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, err := backupDir(cmd)
			if err != nil {
				return err
			}
			backups, err := backup.List(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return encodeJSON(out, backups)
			}
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups in %s\n", dir)
				return nil
			}
			fmt.Fprintf(out, "%-19s  %9s  %s\n", "CREATED", "SIZE", "PATH")
			for _, b := range backups {
				fmt.Fprintf(out, "%-19s  %9s  %s\n", b.CreatedAt.Local().Format(time.DateTime), formatSize(b.Size), b.Path)
			}
			return nil
		},
	}

	cmd.Flags().String("dir", "", "Backup directory (default ~/.prepsim/backups)")

	return cmd
}

func newHistoryRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Replace the results database with a backup",
		Long: `Verify a backup file and copy it over the results database. The current
database is only replaced with --force; take a backup first if you may want it
back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			dst, err := cfg.StorePath()
			if err != nil {
				return fmt.Errorf("resolving store path: %w", err)
			}
			n, err := backup.Restore(cmd.Context(), args[0], dst, force)
			if err != nil {
				return err
			}
			a.logger.Info("store restored", "from", args[0], "experiments", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d experiments from %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Replace an existing results database")

	return cmd
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
