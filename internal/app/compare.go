package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"pricewatch/internal/money"
)

// Compare ranks equivalent products in a category by current price.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	comparator := a.newComparator(store)
	result, err := comparator.Compare(ctx, opts.Category)
	if err != nil {
		return err
	}
	if len(result.Entries) == 0 {
		fmt.Fprintf(os.Stdout, "no active products in category %q\n", opts.Category)
		return nil
	}

	fmt.Fprintf(os.Stdout, "Category: %s\n", result.Category)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tStore\tTitle\tCurrent\tMean 30d")
	for i, entry := range result.Entries {
		mean := "--"
		if entry.Mean30d != nil {
			mean = money.Format(entry.Mean30d)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
			i+1, entry.Product.Store, truncate(entry.Product.Title, 40),
			money.FormatValue(entry.CurrentPrice), mean)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if len(result.Entries) > 1 {
		fmt.Fprintf(os.Stdout, "potential savings: %s\n", money.FormatValue(result.PotentialSavings))
	}
	return nil
}
