package app

import (
	"context"
	"fmt"
	"os"
)

// Update fetches current prices and reconciles alerts. With an ID it updates
// a single product, otherwise every active one.
func (a *App) Update(ctx context.Context, opts UpdateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	if opts.ID > 0 {
		events, err := svc.UpdateProduct(ctx, opts.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "product %d updated; %d alert(s) triggered\n", opts.ID, len(events))
		return nil
	}

	report, err := svc.UpdateAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "updated %d/%d products (%d failed); %d alert(s) triggered\n",
		report.Updated, report.Attempted, report.Failed, len(report.Events))
	return nil
}

// Check re-evaluates alert rules from stored state without fetching.
func (a *App) Check(ctx context.Context, id int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	if id > 0 {
		events, err := svc.CheckProduct(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "checked product %d; %d alert(s) triggered\n", id, len(events))
		return nil
	}

	events, err := svc.CheckAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "check complete; %d alert(s) triggered\n", len(events))
	return nil
}
