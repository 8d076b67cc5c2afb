package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cipherarena/internal/identity"
)

func keysCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage player identities under <home>/keys",
	}
	cmd.AddCommand(keysAddCmd(cc), keysShowCmd(cc))
	return cmd
}

func keysAddCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Generate a new identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := keyPath(cc.cfg.Home, args[0])
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key %q already exists", args[0])
			}
			k, err := identity.GenerateKey()
			if err != nil {
				return err
			}
			if err := identity.SaveKey(path, k); err != nil {
				return err
			}
			cmd.Printf("%s\t%s\n", args[0], k.Address())
			return nil
		},
	}
}

func keysShowCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print an identity's address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := identity.LoadKey(keyPath(cc.cfg.Home, args[0]))
			if err != nil {
				return err
			}
			cmd.Println(k.Address().String())
			return nil
		},
	}
}
