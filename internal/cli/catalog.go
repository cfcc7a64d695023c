package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/config"
	"github.com/spf13/cobra"
)

var catalogFlags struct {
	merchant string
	occasion string
	price    string
	search   string
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List catalog products",
	Long:  `List the voucher catalog. Filters combine; a malformed price bucket is ignored.`,
	Args:  cobra.NoArgs,
	RunE:  listCatalog,
}

func init() {
	f := catalogCmd.Flags()
	f.StringVar(&catalogFlags.merchant, "merchant", "", "only this merchant")
	f.StringVar(&catalogFlags.occasion, "occasion", "", "only this occasion")
	f.StringVar(&catalogFlags.price, "price", "", "price bucket: low, mid or high")
	f.StringVar(&catalogFlags.search, "search", "", "case-insensitive name search")
	rootCmd.AddCommand(catalogCmd)
}

func listCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, database, err := openCatalog(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	if database != nil {
		defer func() { _ = database.Close() }()
	}

	fs := catalog.ParseFilterState(catalogFlags.merchant, catalogFlags.occasion, catalogFlags.price, catalogFlags.search)
	products := catalog.Filter(store.List(), fs)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMERCHANT\tOCCASION\tPRICE")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Merchant, p.Occasion, catalog.FormatPrice(p.Price, cfg.Currency))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no products match")
	}
	return nil
}
