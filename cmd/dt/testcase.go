package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/card"
)

func newTestCaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "testcase",
		Aliases: []string{"tc"},
		Short:   "Manage a card's test cases",
	}

	cmd.AddCommand(newTestCaseListCmd())
	cmd.AddCommand(newTestCaseAddCmd())
	cmd.AddCommand(newTestCaseUpdateCmd())
	cmd.AddCommand(newTestCaseRmCmd())
	return cmd
}

func newTestCaseListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <card-id>",
		Short: "List a card's test cases",
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
			if len(c.TestCases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No test cases.")
				return nil
			}
			printTestCases(cmd.OutOrStdout(), c.TestCases)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTestCaseAddCmd() *cobra.Command {
	var (
		configPath  string
		description string
		input       string
		expected    string
	)

	cmd := &cobra.Command{
		Use:   "add <card-id>",
		Short: "Add a Pending test case to a card",
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

			_, tc, err := card.AddTestCase(ctx, env.store, id, description, input, expected)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added test case %s to card %d\n", tc.ID, id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the test checks")
	cmd.Flags().StringVar(&input, "input", "", "test input or steps")
	cmd.Flags().StringVar(&expected, "expected", "", "expected result")
	return cmd
}

func newTestCaseUpdateCmd() *cobra.Command {
	var (
		configPath  string
		description string
		input       string
		expected    string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "update <card-id> <test-case-id>",
		Short: "Edit a test case or record its result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var p card.TestCasePatch
			if flags.Changed("description") {
				p.Description = &description
			}
			if flags.Changed("input") {
				p.Input = &input
			}
			if flags.Changed("expected") {
				p.ExpectedResult = &expected
			}
			if flags.Changed("status") {
				p.Status = &status
			}
			if p == (card.TestCasePatch{}) {
				return fmt.Errorf("no fields to update")
			}

			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, err := card.UpdateTestCase(ctx, env.store, id, args[1], p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated test case %s on card %d\n", args[1], id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&input, "input", "", "new input")
	cmd.Flags().StringVar(&expected, "expected", "", "new expected result")
	cmd.Flags().StringVar(&status, "status", "", "result: Pending, Pass or Fail")
	return cmd
}

func newTestCaseRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <card-id> <test-case-id>",
		Short: "Remove a test case",
		Args:  cobra.ExactArgs(2),
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

			if _, err := card.DeleteTestCase(ctx, env.store, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed test case %s from card %d\n", args[1], id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
