package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/breedid/internal/catalog"
)

func newBreedsCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var query string

	cmd := &cobra.Command{
		Use:         "breeds [query]",
		Short:       "Search the breed catalog",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := catalog.ParseTypeFilter(typeFlag)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				query = args[0]
			}

			breeds := catalog.Default().Filter(query, filter)
			out := cmd.OutOrStdout()
			if len(breeds) == 0 {
				fmt.Fprintln(out, "No breeds found. Try adjusting your search or filters.")
				return nil
			}

			rows := make([]table.Row, 0, len(breeds))
			for _, b := range breeds {
				shown, more := b.Summary()
				traits := strings.Join(shown, ", ")
				if more > 0 {
					traits += " " + catalog.MoreLabel(more)
				}
				rows = append(rows, table.Row{b.Name, string(b.Type), b.Origin, traits})
			}

			printTable(out, table.Row{"Breed", "Type", "Origin", "Characteristics"}, rows,
				table.ColumnConfig{Name: "Characteristics", WidthMax: traitsWidth})
			fmt.Fprintln(out, catalog.CountPhrase(len(breeds)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "all", "Filter by type (all, cattle, buffalo)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Match name, origin or characteristics")
	return cmd
}
