package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/settings"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "AI provider settings and prompt templates",
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsProviderCmd())
	cmd.AddCommand(newSettingsModelCmd())
	cmd.AddCommand(newSettingsTemperatureCmd())
	cmd.AddCommand(newSettingsSetKeyCmd())
	cmd.AddCommand(newSettingsPromptCmd())
	return cmd
}

func parseProvider(s string) (ai.ProviderName, error) {
	p, ok := ai.ParseProviderName(strings.ToLower(s))
	if !ok {
		return "", fmt.Errorf("%w: %q (want gemini or openai)", settings.ErrUnknownProvider, s)
	}
	return p, nil
}

func newSettingsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active provider and stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsShow(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runSettingsShow(cmd *cobra.Command, configPath string) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	vals, err := settings.All(ctx, env.store)
	if err != nil {
		return err
	}
	st := settings.Resolve(vals, env.cfg.AI)
	sel := st.Selected()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Provider:     %s\n", st.Provider.Display())
	fmt.Fprintf(out, "Model:        %s\n", sel.Model)
	fmt.Fprintf(out, "Temperature:  %s\n", strconv.FormatFloat(sel.Temperature, 'f', -1, 64))
	keyState := "not set"
	if sel.APIKey != "" {
		keyState = settings.Mask(sel.APIKey)
	}
	fmt.Fprintf(out, "API key:      %s\n", keyState)

	stored := settings.Redacted(vals)
	if len(stored) == 0 {
		fmt.Fprintln(out, "\nNo stored settings; defaults apply.")
		return nil
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, kv := range stored {
		fmt.Fprintf(w, "%s\t%s\n", kv[0], truncate(firstLine(kv[1]), 60))
	}
	w.Flush()
	return nil
}

func newSettingsProviderCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "provider <gemini|openai>",
		Short: "Select the AI provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetProvider(ctx, env.store, string(p)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Provider set to %s\n", p.Display())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newSettingsModelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "model <gemini|openai> [model]",
		Short: "Set a provider's model; omit the model to restore the default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			model := ""
			if len(args) == 2 {
				model = args[1]
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetModel(ctx, env.store, p, model); err != nil {
				return err
			}
			if model == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s model reset to default\n", p.Display())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s model set to %s\n", p.Display(), model)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newSettingsTemperatureCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "temperature <gemini|openai> <0-2>",
		Short: "Set a provider's sampling temperature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			t, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: %q", settings.ErrInvalidTemperature, args[1])
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetTemperature(ctx, env.store, p, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s temperature set to %s\n", p.Display(), args[1])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newSettingsSetKeyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set-key <gemini|openai>",
		Short: "Store a provider's API key, read from stdin",
		Long:  "Reads the API key from stdin without echoing it when stdin is a terminal. An empty key removes the stored one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			key, err := readSecret(cmd, fmt.Sprintf("%s API key: ", p.Display()))
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetAPIKey(ctx, env.store, p, key); err != nil {
				return err
			}
			if strings.TrimSpace(key) == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key removed\n", p.Display())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key saved (%s)\n", p.Display(), settings.Mask(strings.TrimSpace(key)))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// readSecret prompts on a terminal with echo off; otherwise it reads one
// line from the command's input.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newSettingsPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Inspect and override prompt templates",
		Long: `Prompt templates drive every AI request. Keys: ` + promptKeyList() + `.
Templates may reference {spec} and {requirement}.`,
	}

	cmd.AddCommand(newPromptShowCmd())
	cmd.AddCommand(newPromptSetCmd())
	cmd.AddCommand(newPromptImportCmd())
	cmd.AddCommand(newPromptResetCmd())
	return cmd
}

func promptKeyList() string {
	keys := make([]string, len(ai.PromptKeys))
	for i, k := range ai.PromptKeys {
		keys[i] = string(k)
	}
	return strings.Join(keys, ", ")
}

func newPromptShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show [key]",
		Short: "Show the effective templates, or one template in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			custom, err := settings.CustomPrompts(ctx, env.store)
			if err != nil {
				return err
			}
			effective := ai.MergePrompts(custom)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				if !ai.IsValidPromptKey(args[0]) {
					return fmt.Errorf("%w: %q (keys: %s)", settings.ErrUnknownPrompt, args[0], promptKeyList())
				}
				fmt.Fprintln(out, effective[ai.PromptKey(args[0])])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSOURCE\tFIRST LINE")
			for _, k := range ai.PromptKeys {
				source := "default"
				if _, ok := custom[string(k)]; ok {
					source = "custom"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", k, source, truncate(firstLine(effective[k]), 60))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPromptSetCmd() *cobra.Command {
	var (
		configPath string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "set <key> [template]",
		Short: "Override one template; an empty template restores the default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inline := ""
			if len(args) == 2 {
				inline = args[1]
			}
			text, err := readText(cmd, inline, file)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetPrompts(ctx, env.store, map[string]string{args[0]: text}); err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Prompt %s restored to default\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompt %s updated\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the template from a file (- for stdin)")
	return cmd
}

func newPromptImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Override templates from a YAML map of key to template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := loadPromptFile(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.SetPrompts(ctx, env.store, overrides); err != nil {
				return err
			}
			keys := make([]string, 0, len(overrides))
			for k := range overrides {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prompt(s): %s\n", len(keys), strings.Join(keys, ", "))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func loadPromptFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(overrides) == 0 {
		return nil, fmt.Errorf("%s: no prompts found", path)
	}
	return overrides, nil
}

func newPromptResetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every template override",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			env, err := openEnv(ctx, configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := settings.ResetPrompts(ctx, env.store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All prompts restored to defaults")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
