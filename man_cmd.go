package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		page = page.WithSection("Environment",
			"GOOGLE_API_KEY, YOUTUBE_API_KEY, OPENAI_API_KEY and OPENAI_BASE_URL hold credentials.\n"+
				"PRISMA_CONFIG_HOME overrides the configuration directory; any key can be set as PRISMA_<SECTION>_<KEY>.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
