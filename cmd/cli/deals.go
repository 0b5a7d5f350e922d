package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/kosarica/basket-service/internal/export"
	"github.com/kosarica/basket-service/internal/optimizer"
)

var (
	dealsLat   float64
	dealsLng   float64
	dealsLimit int
)

// dealsCmd represents the deals command
var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List promotional prices near a location",
	Example: `  basket-service deals --lat 45.81 --lng 15.98
  basket-service deals --lat 45.81 --lng 15.98 --limit 10 --locale hr`,
	Args: cobra.NoArgs,
	RunE: runDeals,
}

func init() {
	rootCmd.AddCommand(dealsCmd)

	dealsCmd.Flags().Float64Var(&dealsLat, "lat", 0, "Caller latitude")
	dealsCmd.Flags().Float64Var(&dealsLng, "lng", 0, "Caller longitude")
	dealsCmd.Flags().IntVar(&dealsLimit, "limit", 0, "Maximum number of deals (default from config)")
	dealsCmd.Flags().StringVar(&outputLocale, "locale", "en", "Locale used to format amounts (e.g. en, hr)")
	dealsCmd.MarkFlagRequired("lat")
	dealsCmd.MarkFlagRequired("lng")
}

func runDeals(cmd *cobra.Command, args []string) error {
	tag, err := language.Parse(outputLocale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", outputLocale, err)
	}

	deals, err := newEngine().NearbyDeals(cmd.Context(), &optimizer.NearbyDealsRequest{
		Location: optimizer.Location{Latitude: dealsLat, Longitude: dealsLng},
		Limit:    dealsLimit,
	})
	if err != nil {
		return fmt.Errorf("nearby deals failed: %w", err)
	}

	return renderDeals(cmd.OutOrStdout(), tag, deals)
}

func renderDeals(out io.Writer, tag language.Tag, deals []*optimizer.Deal) error {
	if len(deals) == 0 {
		_, err := fmt.Fprintln(out, "No deals nearby.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STORE\tCHAIN\tCITY\tPRODUCT\tPRICE")
	for _, d := range deals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.StoreName, d.ChainName, d.City, d.ProductName, export.FormatAmount(tag, d.Price))
	}
	return w.Flush()
}
