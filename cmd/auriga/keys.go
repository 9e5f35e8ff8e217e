package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auriga-id/auriga/pkg/crypto"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
	"github.com/auriga-id/auriga/pkg/idgen"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encryption keys",
	}
	cmd.AddCommand(newKeysAddCmd(), newKeysListCmd(), newKeysRemoveCmd())
	return cmd
}

func openKeyStore(cmd *cobra.Command) (*crypto.KeyStore, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	keeperURL := cfg.Secrets.KeeperURL
	if keeperURL == "" {
		return nil, nil, fmt.Errorf("secrets.keeper_url must be configured for key management")
	}

	store, err := sqlite.New(
		sqlite.WithDSN(cfg.Database.DSN),
		sqlite.WithWALMode(cfg.Database.WALMode),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	keys, err := crypto.NewKeyStore(cmd.Context(), store.DB(), keeperURL)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open key store: %w", err)
	}
	cleanup := func() {
		keys.Close()
		store.Close()
	}
	return keys, cleanup, nil
}

func newKeysAddCmd() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "add <identifier>",
		Short: "Generate and store a new encryption key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			material := make([]byte, 32)
			if _, err := rand.Read(material); err != nil {
				return fmt.Errorf("generate key material: %w", err)
			}
			id, err := idgen.New().NextID()
			if err != nil {
				return fmt.Errorf("generate key id: %w", err)
			}

			if err := keys.Add(cmd.Context(), &crypto.EncryptionKey{
				ID:         id,
				Identifier: args[0],
				Algorithm:  algorithm,
				Material:   material,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key %s added\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "AES256", "key algorithm label")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored encryption keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stored, err := keys.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range stored {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					key.Identifier, key.Algorithm, key.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newKeysRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <identifier>",
		Short: "Remove a stored encryption key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := keys.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key %s removed\n", args[0])
			return nil
		},
	}
}
