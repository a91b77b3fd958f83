package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/knowledge"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
		Long:  "Knowledge files are reference documents whose content is added to AI requests for the cards that reference them.",
	}

	cmd.AddCommand(newKBAddCmd())
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBShowCmd())
	cmd.AddCommand(newKBRmCmd())
	return cmd
}

func newKBAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Add a text file to the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKBAdd(cmd, configPath, args[0], name)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the file's base name)")
	return cmd
}

func runKBAdd(cmd *cobra.Command, configPath, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	f, err := knowledge.Create(ctx, env.store, name, string(data), env.cfg.Knowledge.MaxFileBytes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added knowledge file %d: %s (%s)\n", f.ID, f.Name, formatBytes(len(f.Content)))
	return nil
}

func newKBListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			files, err := knowledge.List(ctx, env.store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No knowledge files.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tADDED")
			for _, f := range files {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, truncate(f.Name, 50), formatBytes(len(f.Content)), formatTime(f.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newKBShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a knowledge file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("knowledge file", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			f, err := knowledge.Get(ctx, env.store, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.Content)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newKBRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a knowledge file and drop it from every card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("knowledge file", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := knowledge.Delete(ctx, env.store, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted knowledge file %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
