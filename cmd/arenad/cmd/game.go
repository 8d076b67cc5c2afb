package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

func parseGameID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return id, nil
}

func parseIndex(what, s string) (uint8, error) {
	i, err := strconv.ParseUint(s, 10, 8)
	if err != nil || i >= state.TotalRounds {
		return 0, fmt.Errorf("invalid %s %q (want 0..%d)", what, s, state.TotalRounds-1)
	}
	return uint8(i), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}

func programAddressCmd(cc *cliContext) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "program-address",
		Short: "Print the arena program address used in decryption requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !remote {
				cmd.Println(identity.ProgramAddress().String())
				return nil
			}
			c, err := cc.dial(false)
			if err != nil {
				return err
			}
			addr, err := c.ProgramAddress(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(addr.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the node instead of computing locally")
	return cmd
}

func gamesCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List all games with their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cc.dial(false)
			if err != nil {
				return err
			}
			games, err := c.Games(cmd.Context())
			if err != nil {
				return err
			}
			if len(games) == 0 {
				cmd.Println("no games")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tHOST\tOPPONENT\tROUND\tSTATUS")
			for _, g := range games {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%s\n",
					g.ID, g.Host.Short(), g.Opponent.Short(), g.CurrentRound, state.TotalRounds, g.Status)
			}
			return w.Flush()
		},
	}
}

func txCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Submit signed arena transactions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create-game",
			Short: "Create a game hosted by the signer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := cc.dial(true)
				if err != nil {
					return err
				}
				id, err := c.CreateGame(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("created game %d\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "join-game <game-id>",
			Short: "Join a waiting game as the opponent",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				c, err := cc.dial(true)
				if err != nil {
					return err
				}
				if err := c.JoinGame(cmd.Context(), id); err != nil {
					return err
				}
				cmd.Printf("joined game %d\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "start-game <game-id>",
			Short: "Start a full game and deal encrypted hands (host only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				c, err := cc.dial(true)
				if err != nil {
					return err
				}
				if err := c.StartGame(cmd.Context(), id); err != nil {
					return err
				}
				cmd.Printf("started game %d\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "play-card <game-id> <card-index>",
			Short: "Play one of the signer's cards in the current round",
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
				c, err := cc.dial(true)
				if err != nil {
					return err
				}
				res, err := c.PlayCard(cmd.Context(), id, idx)
				if err != nil {
					return err
				}
				if res.Resolved {
					cmd.Printf("round %d resolved, outcome handle %s\n", res.Round, res.Outcome)
				} else {
					cmd.Printf("card played in round %d, waiting for opponent\n", res.Round)
				}
				return nil
			},
		},
	)
	return cmd
}

// playerArg returns the address in args[i], or the signer's when absent.
func (cc *cliContext) playerArg(args []string, i int) (identity.Address, error) {
	if len(args) > i {
		return identity.ParseAddress(args[i])
	}
	k, err := cc.loadKey()
	if err != nil {
		return identity.Address{}, err
	}
	if k == nil {
		return identity.Address{}, fmt.Errorf("no player address given and no identity configured")
	}
	return k.Address(), nil
}

func queryCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read arena state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "cards <game-id> [player]",
			Short: "Show a player's card handles",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				player, err := cc.playerArg(args, 1)
				if err != nil {
					return err
				}
				c, err := cc.dial(false)
				if err != nil {
					return err
				}
				hand, err := c.PlayerCards(cmd.Context(), id, player)
				if err != nil {
					return err
				}
				return printJSON(cmd, hand)
			},
		},
		&cobra.Command{
			Use:   "status <game-id> [player]",
			Short: "Show how many cards a player has used",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				player, err := cc.playerArg(args, 1)
				if err != nil {
					return err
				}
				c, err := cc.dial(false)
				if err != nil {
					return err
				}
				st, err := c.PlayerStatus(cmd.Context(), id, player)
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			},
		},
		&cobra.Command{
			Use:   "round <game-id> <round>",
			Short: "Show a round's encrypted outcome handle",
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
				c, err := cc.dial(false)
				if err != nil {
					return err
				}
				r, err := c.RoundOutcome(cmd.Context(), id, round)
				if err != nil {
					return err
				}
				return printJSON(cmd, r)
			},
		},
		&cobra.Command{
			Use:   "rounds <game-id>",
			Short: "Show all rounds; unreachable rounds show as unresolved",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseGameID(args[0])
				if err != nil {
					return err
				}
				c, err := cc.dial(false)
				if err != nil {
					return err
				}
				rounds := c.RoundOutcomes(cmd.Context(), id)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ROUND\tRESOLVED\tOUTCOME")
				for i, r := range rounds {
					outcome := "-"
					if r.Resolved {
						outcome = r.Outcome.String()
					}
					_, _ = fmt.Fprintf(w, "%d\t%t\t%s\n", i, r.Resolved, outcome)
				}
				return w.Flush()
			},
		},
	)
	return cmd
}
