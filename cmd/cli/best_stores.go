package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/kosarica/basket-service/internal/export"
	"github.com/kosarica/basket-service/internal/handlers"
	"github.com/kosarica/basket-service/internal/optimizer"
)

var (
	basketFile   string
	searchLat    float64
	searchLng    float64
	searchRadius float64
	searchTop    int
	searchOnline bool
	xlsxOutput   string
	outputLocale string
)

// bestStoresCmd represents the best-stores command
var bestStoresCmd = &cobra.Command{
	Use:   "best-stores",
	Short: "Rank stores by basket completeness and total cost",
	Long: `Rank stores against a basket read from a JSON file. The file holds an array
of {"productId": <id>, "qty": <n>} lines.

Stores missing fewer items rank first; ties go to the cheaper basket. With
--lat and --lng only stores inside --radius km are considered. With --online
the configured online store allow-list is searched and location is ignored.`,
	Example: `  basket-service best-stores --basket basket.json
  basket-service best-stores --basket basket.json --lat 45.81 --lng 15.98 --radius 5
  basket-service best-stores --basket basket.json --online --xlsx result.xlsx`,
	Args: cobra.NoArgs,
	RunE: runBestStores,
}

func init() {
	rootCmd.AddCommand(bestStoresCmd)

	bestStoresCmd.Flags().StringVar(&basketFile, "basket", "", "Path to the basket JSON file")
	bestStoresCmd.Flags().Float64Var(&searchLat, "lat", 0, "Caller latitude")
	bestStoresCmd.Flags().Float64Var(&searchLng, "lng", 0, "Caller longitude")
	bestStoresCmd.Flags().Float64Var(&searchRadius, "radius", 0, "Search radius in km (default from config)")
	bestStoresCmd.Flags().IntVar(&searchTop, "top", 0, "Number of stores to return (default from config)")
	bestStoresCmd.Flags().BoolVar(&searchOnline, "online", false, "Search online/delivery stores only")
	bestStoresCmd.Flags().StringVar(&xlsxOutput, "xlsx", "", "Also write the ranking to this xlsx file")
	bestStoresCmd.Flags().StringVar(&outputLocale, "locale", "en", "Locale used to format amounts (e.g. en, hr)")
	bestStoresCmd.MarkFlagRequired("basket")
	bestStoresCmd.MarkFlagsRequiredTogether("lat", "lng")
}

func runBestStores(cmd *cobra.Command, args []string) error {
	tag, err := language.Parse(outputLocale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", outputLocale, err)
	}

	items, err := readBasket(basketFile)
	if err != nil {
		return err
	}

	req := &optimizer.OptimizeRequest{
		Items:    items,
		TopN:     searchTop,
		RadiusKm: searchRadius,
	}
	if cmd.Flags().Changed("lat") {
		req.Location = &optimizer.Location{Latitude: searchLat, Longitude: searchLng}
	}

	engine := newEngine()
	var result *optimizer.OptimizeResult
	if searchOnline {
		result, err = engine.BestOnlineStores(cmd.Context(), req)
	} else {
		result, err = engine.BestStores(cmd.Context(), req)
	}
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	if err := renderCandidates(cmd.OutOrStdout(), tag, result); err != nil {
		return err
	}

	if xlsxOutput != "" {
		if err := writeXLSX(xlsxOutput, result); err != nil {
			return err
		}
		logger.Info().Str("file", xlsxOutput).Int("stores", len(result.Candidates)).Msg("Wrote spreadsheet")
	}
	return nil
}

// readBasket loads basket lines from a JSON file.
func readBasket(path string) ([]optimizer.BasketItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read basket: %w", err)
	}

	var lines []handlers.BasketItem
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to parse basket %s: %w", path, err)
	}

	items := make([]optimizer.BasketItem, len(lines))
	for i, line := range lines {
		items[i] = optimizer.BasketItem{ProductID: line.ProductID, Qty: line.Qty}
	}
	return items, nil
}

func renderCandidates(out io.Writer, tag language.Tag, result *optimizer.OptimizeResult) error {
	if !result.Searched {
		_, err := fmt.Fprintln(out, "Basket is empty, nothing to search.")
		return err
	}
	if len(result.Candidates) == 0 {
		_, err := fmt.Fprintf(out, "No store carries any basket item (%d stores searched).\n", result.TotalStoresSearched)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTORE\tCHAIN\tCITY\tTOTAL\tAVAILABLE\tMISSING\tDISTANCE")
	for i, c := range result.Candidates {
		distance := "-"
		if c.DistanceKm != nil {
			distance = fmt.Sprintf("%.1f km", *c.DistanceKm)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i+1,
			c.StoreName,
			c.ChainName,
			c.City,
			export.FormatAmount(tag, c.Total),
			c.AvailableCount,
			c.MissingCount,
			distance,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nShowing %d of %d stores searched.\n", len(result.Candidates), result.TotalStoresSearched)
	return err
}

func writeXLSX(path string, result *optimizer.OptimizeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := export.WriteCandidates(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
