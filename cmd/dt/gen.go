package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/generate"
	"github.com/zulandar/devtask/internal/models"
)

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate artifacts from a card's spec",
	}

	cmd.AddCommand(newGenSubCmd("predev", "Generate the pre-development analysis",
		(*generate.Service).PreDev, printPreDev))
	cmd.AddCommand(newGenSubCmd("testcases", "Generate test cases and append them to the card",
		(*generate.Service).TestCases, func(out io.Writer, c *models.Card) {
			fmt.Fprintf(out, "Card %d now has %d test case(s)\n", c.ID, len(c.TestCases))
			printTestCases(out, c.TestCases)
		}))
	return cmd
}

func newGenSubCmd(use, short string,
	fn func(*generate.Service, context.Context, uint) (*models.Card, error),
	report func(io.Writer, *models.Card)) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use + " <card-id>",
		Short: short,
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
			c, err := fn(generate.New(env.store, p, env.log), ctx, id)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), c)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printPreDev(out io.Writer, c *models.Card) {
	pre := c.PreDevAnalysis.Data()
	fmt.Fprintf(out, "Pre-development analysis for card %d\n", c.ID)
	fmt.Fprintf(out, "\n## Introduction\n%s\n", pre.Introduction)
	fmt.Fprintf(out, "\n## Impact Analysis\n%s\n", pre.ImpactAnalysis)
	fmt.Fprintf(out, "\n## How to Code\n%s\n", pre.HowToCode)
	fmt.Fprintf(out, "\n## Test Approach\n%s\n", pre.TestApproach)
}
