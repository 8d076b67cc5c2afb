package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	"cipherarena/internal/app"
	"cipherarena/internal/config"
	"cipherarena/internal/fhe"
	"cipherarena/internal/kms"
	"cipherarena/internal/state"
)

func initCmd(cc *cliContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write app.toml and generate the network key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteDefault(cc.cfg.Home, cc.cfg.ChainID, force)
			if err != nil {
				return err
			}
			keyPath := config.NetworkKeyPath(cc.cfg.Home)
			if _, err := os.Stat(keyPath); err == nil && !force {
				return fmt.Errorf("network key %s already exists", keyPath)
			}
			key, err := fhe.GenerateNetworkKey()
			if err != nil {
				return err
			}
			if err := fhe.SaveNetworkKey(keyPath, key); err != nil {
				return err
			}
			cmd.Printf("wrote %s\nwrote %s\n", path, keyPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config and network key")
	return cmd
}

func startCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cc.cfg
			key, err := fhe.LoadNetworkKey(config.NetworkKeyPath(cfg.Home))
			if err != nil {
				return fmt.Errorf("load network key (run init first): %w", err)
			}
			db, err := state.OpenDB(cfg.Home, cfg.DB.Name, cfg.DB.Backend)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			a, err := app.New(db, key, app.Options{
				ChainID:     cfg.ChainID,
				MaxOpsPerTx: cfg.FHE.MaxOpsPerTx,
				KMS: kms.Config{
					ChainID:         cfg.ChainID,
					MaxDurationDays: cfg.KMS.MaxDurationDays,
					ClockSkew:       cfg.KMS.ClockSkew,
				},
			}, cc.logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(cfg.ABCI.Address, cfg.ABCI.Transport, a)
			if err != nil {
				return fmt.Errorf("start abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("abci server start: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			cc.logger.Info("abci server listening", "addr", cfg.ABCI.Address, "transport", cfg.ABCI.Transport, "chainId", cfg.ChainID)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				cc.logger.Info("shutting down", "signal", sig.String())
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
}
