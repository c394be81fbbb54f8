package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biglexj/prisma-vtuber/internal/app"
	"github.com/biglexj/prisma-vtuber/internal/sanitize"
)

var sayCmd = &cobra.Command{
	Use:     "say TEXT",
	Short:   "Speak a line with the configured voice",
	Long:    paragraph(fmt.Sprintf("\n%s a line with the configured speech engine. Handy for checking a voice before going live.", keyword("Speak"))),
	Example: paragraph(`prisma say "Hola chat"` + "\n" + `prisma say --engine gtts "Bienvenidos"`),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		text := sanitize.Sanitize(strings.Join(args, " "))
		if sanitize.IsBlank(text) {
			return errors.New("nothing to say")
		}

		speaker, err := app.NewSpeaker(cfg.Speech, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if c, ok := speaker.(io.Closer); ok {
			defer c.Close() //nolint:errcheck
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
		defer cancel()
		return speaker.Speak(ctx, text)
	},
}
