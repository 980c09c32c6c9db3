package main

import (
	"github.com/spf13/cobra"

	"normafetch/internal/model"
	"normafetch/internal/service"
)

var (
	flagWithLinks bool
	flagAtDate    string
	flagOriginal  bool
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Fetch the text of an article (or a whole act)",
	Long: `Fetches the current text of the referenced article. With --at the
text in force at that date is fetched instead; with --original the text
as originally enacted. Both historical modes are refused when the act
date had to be approximated from a year-only reference.

Examples:
  normafetch article --type legge --date 1990-08-07 --number 241 --article 3
  normafetch article --type "codice civile" --article 2043 --links
  normafetch article --type legge --date 1990-08-07 --number 241 --article 3 --at 2005-06-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			r, err := svc.ResolveReference(cmd.Context(), referenceFromFlags())
			if err != nil {
				return err
			}
			var text *model.ArticleText
			switch {
			case flagOriginal:
				text, err = svc.FetchOriginal(cmd.Context(), r)
			case flagAtDate != "":
				text, err = svc.FetchVersionAt(cmd.Context(), r, flagAtDate)
			default:
				text, err = svc.FetchArticleText(cmd.Context(), r, flagWithLinks)
			}
			if err != nil {
				return err
			}
			return printJSON(text)
		})
	},
}
