package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/spf13/cobra"
)

func buildLayoutCommand() *cobra.Command {
	var start, count int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show which sheet slots a job would print on",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start < 0 || count < 0 {
				return fmt.Errorf("start and count must not be negative")
			}
			if start > printing.MaxStartPosition {
				return fmt.Errorf("start must not exceed %d", printing.MaxStartPosition)
			}
			g := printing.StandardSheet()
			plans := g.Plan(start, count)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plans)
			}
			writeLayout(cmd.OutOrStdout(), g, plans)
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "slots already used on the first sheet")
	cmd.Flags().IntVar(&count, "count", 0, "number of labels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the slot plan as JSON")
	return cmd
}

// writeLayout draws each page as a grid; blank slots show as "."
func writeLayout(w io.Writer, g printing.SheetGeometry, plans []printing.PagePlan) {
	for _, page := range plans {
		fmt.Fprintf(w, "page %d (%d/%d)\n", page.Page+1, page.Filled(), g.LabelsPerSheet())
		for row := 0; row < g.Rows; row++ {
			cells := make([]string, 0, g.Columns)
			for col := 0; col < g.Columns; col++ {
				slot := page.Slots[row*g.Columns+col]
				if slot.Blank() {
					cells = append(cells, fmt.Sprintf("%4s", "."))
				} else {
					cells = append(cells, fmt.Sprintf("%4d", slot.PayloadIndex+1))
				}
			}
			fmt.Fprintln(w, strings.Join(cells, " "))
		}
	}
}
