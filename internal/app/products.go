package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"pricewatch/internal/alerting"
	"pricewatch/internal/money"
	"pricewatch/internal/stats"
)

// Add registers a product for tracking.
func (a *App) Add(ctx context.Context, opts AddOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)
	product, err := svc.AddProduct(ctx, opts.Store, opts.URL, opts.Target)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "tracking product %d: %s (%s/%s) at %s\n",
		product.ID, product.Title, product.Store, product.SKU, money.Format(product.CurrentPrice))
	if product.TargetPrice != nil {
		fmt.Fprintf(os.Stdout, "target price: %s\n", money.Format(product.TargetPrice))
	}
	return nil
}

// List prints tracked products.
func (a *App) List(ctx context.Context, opts ListOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	products, err := store.ListProducts(ctx, !opts.All)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(os.Stdout, "no products tracked")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tStore\tSKU\tTitle\tCategory\tCurrent\tTarget\tLowest\tStatus")
	for _, p := range products {
		status := "active"
		if !p.IsActive {
			status = "inactive"
		}
		category := ""
		if p.Category != nil {
			category = *p.Category
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Store, p.SKU, truncate(p.Title, 40), category,
			money.Format(p.CurrentPrice), money.Format(p.TargetPrice),
			money.Format(p.LowestPrice), status)
	}
	return writer.Flush()
}

// Remove deactivates a product, or hard-deletes it when purge is set.
func (a *App) Remove(ctx context.Context, opts RemoveOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)
	if err := svc.RemoveProduct(ctx, opts.ID, opts.Purge); err != nil {
		return err
	}

	if opts.Purge {
		fmt.Fprintf(os.Stdout, "product %d purged with its history\n", opts.ID)
	} else {
		fmt.Fprintf(os.Stdout, "product %d deactivated; history retained\n", opts.ID)
	}
	return nil
}

// Detail prints one product with its windowed statistics and alert status.
func (a *App) Detail(ctx context.Context, id int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	product, err := store.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Product %d: %s\n", product.ID, product.Title)
	fmt.Fprintf(os.Stdout, "Store/SKU: %s/%s\n", product.Store, product.SKU)
	fmt.Fprintf(os.Stdout, "URL: %s\n", product.URL)
	if product.Category != nil {
		fmt.Fprintf(os.Stdout, "Category: %s\n", *product.Category)
	}
	fmt.Fprintf(os.Stdout, "Current: %s\tTarget: %s\n", money.Format(product.CurrentPrice), money.Format(product.TargetPrice))
	fmt.Fprintf(os.Stdout, "Lowest: %s\tHighest: %s\n", money.Format(product.LowestPrice), money.Format(product.HighestPrice))
	if !product.IsActive {
		fmt.Fprintln(os.Stdout, "Status: inactive")
	}

	if product.CurrentPrice != nil && alerting.IsNewLow(*product.CurrentPrice, product.LowestPrice) {
		fmt.Fprintln(os.Stdout, "Current price is a new all-time low")
	}

	now := nowUTC()
	series, err := store.ListObservationsSince(ctx, product.ID, now.Add(-stats.Window180d.Duration()))
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Window\tCount\tMean\tStdDev\tMin\tMax")
	for _, w := range stats.Windows {
		summary := a.engine.Summarize(product.ID, series, w, now)
		mean, stddev, min, max := "--", "--", "--", "--"
		if summary.HasMean() {
			mean = money.FormatValue(summary.Mean)
			min = money.FormatValue(summary.Min)
			max = money.FormatValue(summary.Max)
		}
		if summary.HasStdDev() {
			stddev = summary.StdDev.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\n", w, summary.Count, mean, stddev, min, max)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	states, err := store.GetAlertStates(ctx, product.ID)
	if err != nil {
		return err
	}
	var triggered []string
	for key, state := range states {
		if state.IsTriggered {
			triggered = append(triggered, key)
		}
	}
	if len(triggered) > 0 {
		fmt.Fprintf(os.Stdout, "Triggered alerts: %s\n", strings.Join(triggered, ", "))
	}
	return nil
}

// Alerts prints currently triggered alerts across all products.
func (a *App) Alerts(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	triggered, err := store.ListTriggered(ctx)
	if err != nil {
		return err
	}
	if len(triggered) == 0 {
		fmt.Fprintln(os.Stdout, "no triggered alerts")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tStore\tRule\tPrice\tTriggered (UTC)")
	for _, alert := range triggered {
		at := ""
		if alert.State.TriggeredAt != nil {
			at = alert.State.TriggeredAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			truncate(alert.Product.Title, 40), alert.Product.Store,
			alert.State.RuleKey, money.Format(alert.State.TriggeredPrice), at)
	}
	return writer.Flush()
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max-3] + "..."
}
