package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/models"
	"github.com/zulandar/devtask/internal/tag"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagListCmd())
	cmd.AddCommand(newTagRmCmd())
	return cmd
}

func newTagAddCmd() *cobra.Command {
	var (
		configPath string
		color      string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			t, err := tag.Create(ctx, env.store, args[0], color)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tag %d: %s (%s)\n", t.ID, t.Name, t.Color)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&color, "color", "slate", "palette color: "+strings.Join(models.TagColors, ", "))
	return cmd
}

func newTagListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			tags, err := tag.List(ctx, env.store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tags) == 0 {
				fmt.Fprintln(out, "No tags.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOLOR")
			for _, t := range tags {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, orDash(t.Color))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTagRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a tag and drop it from every card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			t, err := tag.GetByName(ctx, env.store, args[0])
			if err != nil {
				return err
			}
			if err := tag.Delete(ctx, env.store, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag %s\n", t.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
