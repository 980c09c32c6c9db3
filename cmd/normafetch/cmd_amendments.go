package main

import (
	"github.com/spf13/cobra"

	"normafetch/internal/service"
)

var amendmentsCmd = &cobra.Command{
	Use:   "amendments",
	Short: "List the modifications recorded against an act",
	Long: `Fetches the amendment history Normattiva records for the act. When
--article is set, only modifications touching that article are listed.
Destinations the structured parsers cannot read are recovered through
the LLM fallback when an API key is configured.

Example:
  normafetch amendments --type legge --date 1990-08-07 --number 241 --article 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			ref := referenceFromFlags()
			filter := ref.Article
			// The history lives on the act page, not the article page.
			ref.Article = ""
			r, err := svc.ResolveReference(cmd.Context(), ref)
			if err != nil {
				return err
			}
			amendments, err := svc.FetchAmendmentHistory(cmd.Context(), r, filter)
			if err != nil {
				return err
			}
			return printJSON(amendments)
		})
	},
}
