package main

import (
	"github.com/spf13/cobra"

	"normafetch/internal/service"
	"normafetch/internal/urn"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [urn]",
	Short: "Resolve a legal reference to its canonical URN or ELI URL",
	Long: `Validates the reference, completes a year-only date against the
Normattiva search when needed, and prints the canonical identifier.
Given a raw urn:nir identifier as argument, prints its decomposed
components instead.

Examples:
  normafetch resolve --type legge --date 1990-08-07 --number 241 --article 3
  normafetch resolve --type "codice civile" --article 1414
  normafetch resolve --type "regolamento ue" --date 2016 --number 679
  normafetch resolve "urn:nir:stato:regio.decreto:1942-03-16;262:2~art1414"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			c, err := urn.Parse(args[0])
			if err != nil {
				return err
			}
			return printJSON(c)
		}
		return withService(cmd.Context(), func(svc *service.Service) error {
			r, err := svc.ResolveReference(cmd.Context(), referenceFromFlags())
			if err != nil {
				return err
			}
			return printJSON(r)
		})
	},
}
