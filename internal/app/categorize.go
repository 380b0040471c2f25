package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
)

// Categorize assigns generic category labels. With an ID it labels a single
// product; with All it labels every active product missing a label.
func (a *App) Categorize(ctx context.Context, opts CategorizeOptions) error {
	if opts.ID == 0 && !opts.All {
		return errors.New("either a product id or --all must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	classifier, err := a.newCategorizer()
	if err != nil {
		return err
	}

	if opts.ID > 0 {
		product, err := store.GetProduct(ctx, opts.ID)
		if err != nil {
			return err
		}
		label, err := classifier.Categorize(ctx, product.Title)
		if err != nil {
			return err
		}
		if err := store.SetCategory(ctx, product.ID, label); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "product %d categorized as %q\n", product.ID, label)
		return nil
	}

	products, err := store.ListUncategorized(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(os.Stdout, "all active products are categorized")
		return nil
	}

	var labeled, failed int
	for _, product := range products {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		label, err := classifier.Categorize(ctx, product.Title)
		if err != nil {
			failed++
			a.Logger.Warn().Err(err).Int64("product_id", product.ID).Msg("categorization skipped")
			continue
		}
		if err := store.SetCategory(ctx, product.ID, label); err != nil {
			failed++
			a.Logger.Warn().Err(err).Int64("product_id", product.ID).Msg("category write failed")
			continue
		}
		labeled++
		fmt.Fprintf(os.Stdout, "product %d categorized as %q\n", product.ID, label)
	}

	fmt.Fprintf(os.Stdout, "categorized %d product(s), %d failed\n", labeled, failed)
	return nil
}

// Categories lists assigned category labels with member counts.
func (a *App) Categories(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	counts, err := store.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(os.Stdout, "no categories assigned")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Category\tProducts")
	for _, c := range counts {
		fmt.Fprintf(writer, "%s\t%d\n", c.Category, c.Products)
	}
	return writer.Flush()
}
