package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"normafetch/internal/service"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch doctrinal commentary for an article",
	Long: `Fetches the Brocardi commentary for the article: position in the
code, latin maxims, ratio, explanation, case law massime, historical
relations and footnotes. Acts outside Brocardi's coverage and EU acts
yield no enrichment.

Example:
  normafetch enrich --type "codice civile" --article 1414`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			r, err := svc.ResolveReference(cmd.Context(), referenceFromFlags())
			if err != nil {
				return err
			}
			enr, err := svc.FetchEnrichment(cmd.Context(), r)
			if err != nil {
				return err
			}
			if enr == nil {
				fmt.Fprintln(os.Stderr, "no commentary available for this reference")
				return nil
			}
			return printJSON(enr)
		})
	},
}
