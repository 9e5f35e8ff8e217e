package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
	"github.com/auriga-id/auriga/pkg/projection"
)

func newMigrateCmd() *cobra.Command {
	var (
		catchUp bool
		rebuild []string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply event store and projection schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := sqlite.New(
				sqlite.WithDSN(cfg.Database.DSN),
				sqlite.WithWALMode(cfg.Database.WALMode),
			)
			if err != nil {
				return fmt.Errorf("open event store: %w", err)
			}
			defer store.Close()

			if err := projection.Migrate(store.DB()); err != nil {
				return fmt.Errorf("migrate projections: %w", err)
			}

			if catchUp || len(rebuild) > 0 {
				manager := projection.NewManager(store.DB(), store, store, projection.DefaultHandlers())
				instances, err := store.Instances(cmd.Context())
				if err != nil {
					return fmt.Errorf("list instances: %w", err)
				}
				for _, instanceID := range instances {
					if len(rebuild) > 0 {
						if err := manager.Rebuild(cmd.Context(), instanceID, rebuild...); err != nil {
							return fmt.Errorf("rebuild instance %s: %w", instanceID, err)
						}
						continue
					}
					if err := manager.CatchUp(cmd.Context(), instanceID); err != nil {
						return fmt.Errorf("catch up instance %s: %w", instanceID, err)
					}
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&catchUp, "catch-up", false, "replay all events through the projections after migrating")
	cmd.Flags().StringSliceVar(&rebuild, "rebuild", nil, "drop and replay the named projections (repeatable)")
	return cmd
}
