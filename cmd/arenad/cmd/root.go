package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cipherarena/internal/client"
	"cipherarena/internal/config"
	"cipherarena/internal/identity"
)

const (
	flagHome     = "home"
	flagChainID  = "chain-id"
	flagNode     = "node"
	flagKeyFile  = "key-file"
	flagFrom     = "from"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

// cliContext carries the resolved configuration to subcommands.
type cliContext struct {
	cfg    *config.Config
	logger log.Logger
	from   string
}

func NewRootCmd() *cobra.Command {
	cc := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "arenad",
		Short:         "CipherArena ledger daemon and player CLI",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())

			v := config.New()
			if err := config.BindFlags(v, cmd.Flags(), map[string]string{
				flagHome:     "home",
				flagChainID:  "chain_id",
				flagNode:     "client.node",
				flagKeyFile:  "client.key_file",
				flagLogLevel: "log.level",
				flagLogJSON:  "log.json",
			}); err != nil {
				return err
			}
			// <home>/.env complements the working-directory one loaded by main.
			_ = godotenv.Load(filepath.Join(v.GetString("home"), ".env"))

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			cc.cfg = cfg
			cc.logger = logger
			cc.from, _ = cmd.Flags().GetString(flagFrom)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String(flagHome, config.DefaultHome(), "node and keyring home directory")
	pf.String(flagChainID, config.DefaultChainID, "chain id")
	pf.String(flagNode, "http://127.0.0.1:26657", "CometBFT RPC endpoint")
	pf.String(flagKeyFile, "", "identity key file (overrides --from)")
	pf.String(flagFrom, "", "name of a key under <home>/keys")
	pf.String(flagLogLevel, "info", "log level (trace|debug|info|warn|error)")
	pf.Bool(flagLogJSON, false, "emit JSON logs")

	rootCmd.AddCommand(
		initCmd(cc),
		startCmd(cc),
		keysCmd(cc),
		programAddressCmd(cc),
		gamesCmd(cc),
		txCmd(cc),
		queryCmd(cc),
		decryptCmd(cc),
	)
	return rootCmd
}

func newLogger(cfg config.LogConfig) (log.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if cfg.JSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(os.Stderr, opts...), nil
}

func keyPath(home, name string) string {
	return filepath.Join(home, "keys", name+".json")
}

// loadKey resolves the signing identity from --key-file, client.key_file or
// --from, in that order. It returns nil when none is configured.
func (cc *cliContext) loadKey() (*identity.PrivateKey, error) {
	if p := cc.cfg.KeyFile(); p != "" {
		return identity.LoadKey(p)
	}
	if cc.from != "" {
		return identity.LoadKey(keyPath(cc.cfg.Home, cc.from))
	}
	return nil, nil
}

func (cc *cliContext) clientOptions() client.Options {
	return client.Options{
		ChainID:         cc.cfg.ChainID,
		DurationDays:    cc.cfg.Client.DurationDays,
		DecryptAttempts: cc.cfg.Client.DecryptAttempts,
	}
}

// dial connects to the node. requireKey fails early for commands that sign.
func (cc *cliContext) dial(requireKey bool) (*client.Client, error) {
	return cc.dialWith(requireKey, cc.clientOptions())
}

func (cc *cliContext) dialWith(requireKey bool, opts client.Options) (*client.Client, error) {
	key, err := cc.loadKey()
	if err != nil {
		return nil, err
	}
	if key == nil && requireKey {
		return nil, fmt.Errorf("no identity: pass --from <name> or --key-file <path>")
	}
	return client.Dial(cc.cfg.Client.Node, key, opts, cc.logger)
}
