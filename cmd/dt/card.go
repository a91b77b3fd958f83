package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/clarify"
	"github.com/zulandar/devtask/internal/generate"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/models"
	"github.com/zulandar/devtask/internal/tag"
)

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card management commands",
	}

	cmd.AddCommand(newCardCreateCmd())
	cmd.AddCommand(newCardListCmd())
	cmd.AddCommand(newCardShowCmd())
	cmd.AddCommand(newCardUpdateCmd())
	cmd.AddCommand(newCardDeleteCmd())
	cmd.AddCommand(newCardExportCmd())
	cmd.AddCommand(newCardTitleCmd())
	cmd.AddCommand(newCardRefCmd("attach", "Attach a knowledge file or tag to a card"))
	cmd.AddCommand(newCardRefCmd("detach", "Detach a knowledge file or tag from a card"))
	return cmd
}

// readText returns inline when set, else the contents of path ("-" reads
// stdin).
func readText(cmd *cobra.Command, inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func newCardCreateCmd() *cobra.Command {
	var (
		configPath      string
		title           string
		requirement     string
		requirementFile string
		reference       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new Todo card",
		Long:  "Creates a new card in Todo. Without --title the card is named after the current time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readText(cmd, requirement, requirementFile)
			if err != nil {
				return err
			}
			return runCardCreate(cmd, configPath, title, req, reference)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "card title")
	cmd.Flags().StringVar(&requirement, "requirement", "", "raw requirement text")
	cmd.Flags().StringVar(&requirementFile, "requirement-file", "", "read the requirement from a file (- for stdin)")
	cmd.Flags().StringVar(&reference, "reference", "", "reference link")
	return cmd
}

func runCardCreate(cmd *cobra.Command, configPath, title, requirement, reference string) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	c, err := card.Create(ctx, env.store, title)
	if err != nil {
		return err
	}
	var p card.Patch
	if requirement != "" {
		p.Requirement = &requirement
	}
	if reference != "" {
		p.ReferenceLink = &reference
	}
	if !p.IsEmpty() {
		if c, err = card.Update(ctx, env.store, c.ID, p); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created card %d: %s\n", c.ID, c.Title)
	return nil
}

func newCardListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		tagName    string
		kbID       uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCardList(cmd, configPath, status, tagName, kbID)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Todo, In Progress, Done)")
	cmd.Flags().StringVar(&tagName, "tag", "", "filter by tag name")
	cmd.Flags().UintVar(&kbID, "kb", 0, "filter by knowledge file ID")
	return cmd
}

func runCardList(cmd *cobra.Command, configPath, status, tagName string, kbID uint) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	f := card.ListFilters{Status: status, KnowledgeFileID: kbID}
	if tagName != "" {
		t, err := tag.GetByName(ctx, env.store, tagName)
		if err != nil {
			return err
		}
		f.TagID = t.ID
	}

	cards, err := card.List(ctx, env.store, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cards) == 0 {
		fmt.Fprintln(out, "No cards found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tTESTS\tUPDATED")
	for _, c := range cards {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			c.ID, truncate(c.Title, 50), c.Status, len(c.TestCases), formatTime(c.UpdatedAt))
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d card(s)\n", len(cards))
	return nil
}

func newCardShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a card with its references and test cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			return runCardShow(cmd, configPath, id)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runCardShow(cmd *cobra.Command, configPath string, id uint) error {
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
	tags, err := tag.ForCard(ctx, env.store, c)
	if err != nil {
		return err
	}
	files, err := knowledge.ForCard(ctx, env.store, c)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Card %d: %s\n", c.ID, c.Title)
	fmt.Fprintf(out, "Status:     %s\n", c.Status)
	fmt.Fprintf(out, "Reference:  %s\n", orDash(c.ReferenceLink))
	fmt.Fprintf(out, "Dialogue:   %s\n", clarify.StateOf(c.RequirementChatHistory))
	fmt.Fprintf(out, "Created:    %s\n", formatTime(c.CreatedAt))
	fmt.Fprintf(out, "Updated:    %s\n", formatTime(c.UpdatedAt))

	tagNames := make([]string, len(tags))
	for i, t := range tags {
		tagNames[i] = t.Name
	}
	fmt.Fprintf(out, "Tags:       %s\n", orDash(strings.Join(tagNames, ", ")))
	fileNames := make([]string, len(files))
	for i, f := range files {
		fileNames[i] = fmt.Sprintf("%s (#%d)", f.Name, f.ID)
	}
	fmt.Fprintf(out, "Knowledge:  %s\n", orDash(strings.Join(fileNames, ", ")))

	fmt.Fprintf(out, "\nRequirement:\n%s\n", orDash(c.Requirement))
	fmt.Fprintf(out, "\nSpec:\n%s\n", orDash(c.Spec))
	if pre := c.PreDevAnalysis.Data(); !pre.IsZero() {
		fmt.Fprintln(out, "\nPre-development analysis: generated (see `dt card export`)")
	}

	if len(c.TestCases) > 0 {
		fmt.Fprintln(out, "\nTest cases:")
		printTestCases(out, c.TestCases)
	}
	return nil
}

func printTestCases(out io.Writer, tcs []models.TestCase) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDESCRIPTION\tEXPECTED")
	for _, tc := range tcs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			tc.ID, tc.Status, truncate(firstLine(tc.Description), 50), truncate(firstLine(tc.ExpectedResult), 40))
	}
	w.Flush()
}

func newCardUpdateCmd() *cobra.Command {
	var (
		configPath      string
		title           string
		status          string
		requirement     string
		requirementFile string
		reference       string
		specFile        string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update card fields",
		Long:  "Updates only the fields whose flags are given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var p card.Patch
			if flags.Changed("title") {
				p.Title = &title
			}
			if flags.Changed("status") {
				p.Status = &status
			}
			if flags.Changed("requirement") || flags.Changed("requirement-file") {
				req, err := readText(cmd, requirement, requirementFile)
				if err != nil {
					return err
				}
				p.Requirement = &req
			}
			if flags.Changed("reference") {
				p.ReferenceLink = &reference
			}
			if flags.Changed("spec-file") {
				spec, err := readText(cmd, "", specFile)
				if err != nil {
					return err
				}
				p.Spec = &spec
			}
			if p.IsEmpty() {
				return fmt.Errorf("no fields to update")
			}
			return runCardUpdate(cmd, configPath, id, p)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&status, "status", "", "new status (Todo, In Progress, Done)")
	cmd.Flags().StringVar(&requirement, "requirement", "", "new requirement text")
	cmd.Flags().StringVar(&requirementFile, "requirement-file", "", "read the requirement from a file (- for stdin)")
	cmd.Flags().StringVar(&reference, "reference", "", "new reference link")
	cmd.Flags().StringVar(&specFile, "spec-file", "", "replace the spec with a file's contents (- for stdin)")
	return cmd
}

func runCardUpdate(cmd *cobra.Command, configPath string, id uint, p card.Patch) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	c, err := card.Update(ctx, env.store, id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated card %d: %s [%s]\n", c.ID, c.Title, c.Status)
	return nil
}

func newCardDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a card",
		Args:    cobra.ExactArgs(1),
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

			if err := card.Delete(ctx, env.store, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted card %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newCardExportCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a card as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			return runCardExport(cmd, configPath, id, output)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func runCardExport(cmd *cobra.Command, configPath string, id uint, output string) error {
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
	tags, err := tag.ForCard(ctx, env.store, c)
	if err != nil {
		return err
	}
	md := card.Markdown(c, tags)

	if output == "" {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported card %d to %s\n", id, output)
	return nil
}

func newCardTitleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "title <id>",
		Short: "Generate a title from the card's requirement",
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
			c, err := generate.New(env.store, p, env.log).Title(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d is now titled %q\n", c.ID, c.Title)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// newCardRefCmd builds attach or detach; both take --kb and/or --tag.
func newCardRefCmd(verb, short string) *cobra.Command {
	var (
		configPath string
		kbID       uint
		tagName    string
	)

	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			if kbID == 0 && tagName == "" {
				return fmt.Errorf("one of --kb or --tag is required")
			}
			return runCardRef(cmd, configPath, verb, id, kbID, tagName)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&kbID, "kb", 0, "knowledge file ID")
	cmd.Flags().StringVar(&tagName, "tag", "", "tag name")
	return cmd
}

func runCardRef(cmd *cobra.Command, configPath, verb string, id, kbID uint, tagName string) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	attachKB, attachTag := card.AttachKnowledgeFile, card.AttachTag
	if verb == "detach" {
		attachKB, attachTag = card.DetachKnowledgeFile, card.DetachTag
	}

	out := cmd.OutOrStdout()
	if kbID != 0 {
		if _, err := attachKB(ctx, env.store, id, kbID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Card %d: %sed knowledge file %d\n", id, verb, kbID)
	}
	if tagName != "" {
		t, err := tag.GetByName(ctx, env.store, tagName)
		if err != nil {
			return err
		}
		if _, err := attachTag(ctx, env.store, id, t.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Card %d: %sed tag %s\n", id, verb, t.Name)
	}
	return nil
}
