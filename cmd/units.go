package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/converter"
)

// unitsCmd prints the active unit table, including units added by
// units_workbook.
var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Print the unit of measure table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnits(mainConfig, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}

func runUnits(cfg *config.MainConfig, out io.Writer) error {
	table, err := converter.LoadUnits(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UOM\tCANONICAL\tMULTIPLIER\tADDITIVE\tDESCRIPTION")
	for _, u := range table.Units() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.Name, u.Canonical, u.Multiplier.String(), u.Additive, u.Description)
	}
	return tw.Flush()
}
