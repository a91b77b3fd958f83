package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/clarify"
	"github.com/zulandar/devtask/internal/models"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Clarify a card's requirement with the AI",
		Long: `Runs the clarification dialogue of a card. The AI asks questions until the
requirement is clear, then writes the card's spec and the dialogue completes.`,
	}

	cmd.AddCommand(newChatStartCmd())
	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatShowCmd())
	cmd.AddCommand(newChatResetCmd())
	return cmd
}

// printTurn shows the reply of one turn and what to do next.
func printTurn(out io.Writer, turn *clarify.Turn) {
	switch turn.Result.Kind {
	case ai.KindQuestion:
		fmt.Fprintf(out, "AI: %s\n", turn.Result.Text)
		fmt.Fprintf(out, "\nReply with: dt chat send %d <answer>\n", turn.Card.ID)
	case ai.KindAnswer:
		fmt.Fprintf(out, "Spec generated for card %d (%d chars). Show it with: dt card show %d\n",
			turn.Card.ID, len(turn.Card.Spec), turn.Card.ID)
	default:
		fmt.Fprintf(out, "Error: %s\n", turn.Result.Text)
		fmt.Fprintf(out, "\nRetry with: dt chat send %d <message>\n", turn.Card.ID)
	}
}

func newChatStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start <card-id>",
		Short: "Start the dialogue from the card's requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			p, err := env.provider(ctx)
			if err != nil {
				return err
			}
			turn, err := clarify.New(env.store, p, env.log).Start(ctx, id)
			if err != nil {
				return err
			}
			printTurn(cmd.OutOrStdout(), turn)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newChatSendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "send <card-id> <message...>",
		Short: "Answer the AI's question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			message := strings.Join(args[1:], " ")

			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			p, err := env.provider(ctx)
			if err != nil {
				return err
			}
			turn, err := clarify.New(env.store, p, env.log).Send(ctx, id, message)
			if err != nil {
				return err
			}
			printTurn(cmd.OutOrStdout(), turn)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newChatShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <card-id>",
		Short: "Print the dialogue transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			c, err := card.Get(ctx, env.store, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Card %d dialogue: %s\n", c.ID, clarify.StateOf(c.RequirementChatHistory))
			for _, m := range c.RequirementChatHistory {
				fmt.Fprintf(out, "\n[%s] %s\n", speaker(m), m.Text)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func speaker(m models.ChatMessage) string {
	switch {
	case m.IsError:
		return "error"
	case m.Role == models.RoleModel:
		return "ai"
	}
	return "you"
}

func newChatResetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset <card-id>",
		Short: "Clear the dialogue so it can start again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, err := clarify.New(env.store, nil, env.log).Reset(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dialogue of card %d reset\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
