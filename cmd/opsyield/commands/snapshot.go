package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	providerAWS "github.com/opsyield/opsyield/pkg/engine/provider/aws"
	"github.com/opsyield/opsyield/pkg/engine/snapshot"
	"github.com/opsyield/opsyield/pkg/storage"
)

var (
	snapshotName      string
	snapshotProviders string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage analysis snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Run an analysis and store it as a named baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := snapshotManager(cmd.Context())
		if err != nil {
			return err
		}
		result, err := runAnalysis(cmd, snapshotProviders)
		if err != nil {
			return err
		}
		if err := mgr.Save(cmd.Context(), snapshotName, result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %q saved (total cost %.2f)\n", snapshotName, result.Summary.TotalCost)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := snapshotManager(cmd.Context())
		if err != nil {
			return err
		}
		keys, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range keys {
			name := strings.TrimSuffix(strings.TrimPrefix(key, "snapshots/"), ".json")
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	snapshotSaveCmd.Flags().StringVar(&snapshotName, "name", "baseline", "snapshot name")
	snapshotSaveCmd.Flags().StringVar(&snapshotProviders, "providers", "", "comma-separated providers")
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}

// snapshotManager builds a manager over the configured archive: an S3
// bucket when snapshot.bucket is set, the local snapshot dir otherwise.
func snapshotManager(ctx context.Context) (*snapshot.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Snapshot.Bucket != "" {
		session, err := providerAWS.NewSession(ctx, awsRegion, awsProfile)
		if err != nil {
			return nil, fmt.Errorf("s3 snapshot storage: %w", err)
		}
		return snapshot.NewManager(storage.NewS3Archive(session.Config, cfg.Snapshot.Bucket, ""), logger), nil
	}
	return snapshot.NewManager(storage.NewLocalArchive(cfg.Snapshot.Dir), logger), nil
}
