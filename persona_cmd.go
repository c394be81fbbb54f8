package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/biglexj/prisma-vtuber/internal/persona"
)

var showPrompt bool

var personaCmd = &cobra.Command{
	Use:     "persona",
	Short:   "Show the personality the VTuber plays",
	Long:    paragraph(fmt.Sprintf("\n%s the personality record and the system prompt built from it.", keyword("Show"))),
	Example: paragraph("prisma persona\nprisma persona --prompt"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := persona.Load(cfg.Persona.Personality)
		if err != nil {
			return err
		}

		if showPrompt {
			fmt.Fprintln(cmd.OutOrStdout(), p.SystemPrompt())
			return nil
		}

		out, err := renderMarkdown(p.Markdown())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	personaCmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the system prompt sent to the language model")
}

func renderMarkdown(md string) (string, error) {
	style := glamour.WithAutoStyle()
	width := 80
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil {
			width = min(w, 120)
		}
	} else {
		style = glamour.WithStandardStyle(styles.NoTTYStyle)
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
