package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cipherarena/internal/client"
	"cipherarena/internal/state"
	"cipherarena/internal/typeddata"
)

const flagShowRequest = "show-request"

// dialDecrypt dials with a signing identity. With --show-request every
// authorization is printed to stderr before it is signed.
func (cc *cliContext) dialDecrypt(cmd *cobra.Command) (*client.Client, error) {
	opts := cc.clientOptions()
	if show, _ := cmd.Flags().GetBool(flagShowRequest); show {
		opts.Confirm = showRequest(cmd.ErrOrStderr())
	}
	return cc.dialWith(true, opts)
}

func showRequest(w io.Writer) func(typeddata.Domain, typeddata.UserDecryptRequest) error {
	return func(d typeddata.Domain, m typeddata.UserDecryptRequest) error {
		_, err := fmt.Fprint(w, "signing decryption request:\n"+typeddata.Describe(d, m))
		return err
	}
}

func decryptCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt values the signer holds grants on",
	}
	cmd.PersistentFlags().Bool(flagShowRequest, false, "print the typed authorization before signing it")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "card <game-id> <card-index>",
			Short: "Decrypt one of the signer's cards",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				idx, err := parseIndex("card index", args[1])
				if err != nil {
					return err
				}
				c, err := cc.dialDecrypt(cmd)
				if err != nil {
					return err
				}
				v, err := c.DecryptCard(cmd.Context(), id, idx)
				if err != nil {
					return err
				}
				cmd.Printf("card %d: %d\n", idx, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "hand <game-id>",
			Short: "Decrypt all of the signer's cards in one session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				c, err := cc.dialDecrypt(cmd)
				if err != nil {
					return err
				}
				me, err := c.Address()
				if err != nil {
					return err
				}
				hand, err := c.PlayerCards(cmd.Context(), id, me)
				if err != nil {
					return err
				}
				values, err := c.DecryptHand(cmd.Context(), id)
				if errors.Is(err, client.ErrNotReady) {
					return fmt.Errorf("no cards dealt yet in game %d", id)
				}
				if err != nil {
					return err
				}
				for i, v := range values {
					mark := ""
					if hand.Used[i] {
						mark = " (played)"
					}
					cmd.Printf("card %d: %d%s\n", i, v, mark)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "round <game-id> <round>",
			Short: "Decrypt a resolved round's outcome",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				round, err := parseIndex("round", args[1])
				if err != nil {
					return err
				}
				c, err := cc.dialDecrypt(cmd)
				if err != nil {
					return err
				}
				v, err := c.DecryptRound(cmd.Context(), id, round)
				if errors.Is(err, client.ErrNotReady) {
					return fmt.Errorf("round %d not resolved yet", round)
				}
				if err != nil {
					return err
				}
				cmd.Printf("round %d: %s (%d)\n", round, state.OutcomeLabel(v), v)
				return nil
			},
		},
	)
	return cmd
}
