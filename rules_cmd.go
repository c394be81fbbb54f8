package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/biglexj/prisma-vtuber/internal/rules"
)

var (
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect the canned answers",
		Long:  paragraph(fmt.Sprintf("\n%s the rules that answer chat before the language model is asked.", keyword("Inspect"))),
		Args:  cobra.NoArgs,
	}

	rulesListCmd = &cobra.Command{
		Use:     "list [PATTERN]",
		Short:   "List rules, optionally fuzzy filtered",
		Example: paragraph("prisma rules list\nprisma rules list nombre"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadRules()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				set = rules.Filter(set, args[0])
			}
			printRules(cmd.OutOrStdout(), set)
			return nil
		},
	}

	rulesCheckCmd = &cobra.Command{
		Use:     "check MESSAGE",
		Short:   "Show which rule, if any, answers a message",
		Example: paragraph(`prisma rules check "como te llamas?"`),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadRules()
			if err != nil {
				return err
			}
			res := rules.NewMatcher(set).Explain(strings.Join(args, " "))
			printResult(cmd.OutOrStdout(), res, rules.Suggest(set, strings.Join(args, " "), 3))
			return nil
		},
	}
)

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesCheckCmd)
}

// loadRules reads the configured rules file. Unlike the pipeline, which
// degrades to no rules, the inspector reports why the file is unusable.
func loadRules() (rules.RuleSet, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return rules.Load(cfg.Persona.Rules)
}

func printRules(w io.Writer, set rules.RuleSet) {
	if len(set) == 0 {
		fmt.Fprintln(w, faint("no rules"))
		return
	}

	width := 0
	for _, r := range set {
		width = max(width, runewidth.StringWidth(r.Key))
	}
	for _, r := range set {
		fmt.Fprintf(w, "%s  %s\n", keyword(runewidth.FillRight(r.Key, width)),
			faint(fmt.Sprintf("%d phrasings, %d responses", len(r.Phrasings), len(r.Responses))))
		for _, p := range r.Phrasings {
			fmt.Fprintf(w, "%s  %s\n", strings.Repeat(" ", width), p)
		}
	}
}

func printResult(w io.Writer, res rules.Result, suggestions []string) {
	if res.Key == "" {
		fmt.Fprintln(w, faint("no rules loaded"))
		return
	}

	verdict := bad("no match")
	if res.Matched {
		verdict = good("match")
	}
	fmt.Fprintf(w, "%s  %s %.1f (threshold %.0f)\n", verdict, keyword(res.Key), res.Score, rules.DefaultThreshold)
	fmt.Fprintf(w, "%s %q\n", faint("closest phrasing:"), res.Phrasing)
	if res.Matched {
		fmt.Fprintf(w, "%s %s\n", faint("answer:"), res.Response)
		return
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "%s %s\n", faint("similar rules:"), strings.Join(suggestions, ", "))
	}
}
