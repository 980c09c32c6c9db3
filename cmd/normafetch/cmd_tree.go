package main

import (
	"github.com/spf13/cobra"

	"normafetch/internal/model"
	"normafetch/internal/service"
)

var (
	flagTreeLinks    bool
	flagTreeDetails  bool
	flagTreeMetadata bool
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Enumerate the articles of an act",
	Long: `Lists every article of the act, annex by annex. --links adds a
direct URL per article, --details keeps partition headers (titles,
chapters), --metadata adds per-annex counts.

Example:
  normafetch tree --type "codice civile" --metadata`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			r, err := svc.ResolveReference(cmd.Context(), referenceFromFlags())
			if err != nil {
				return err
			}
			tree, err := svc.FetchTree(cmd.Context(), r, model.TreeOptions{
				WithLinks:    flagTreeLinks,
				WithDetails:  flagTreeDetails,
				WithMetadata: flagTreeMetadata,
			})
			if err != nil {
				return err
			}
			return printJSON(tree)
		})
	},
}
