package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pricewatch/internal/money"
	"pricewatch/internal/stats"
	"pricewatch/internal/storage"
)

// History prints the observation series for a product and optionally writes
// it as CSV and/or a PNG chart.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	product, err := store.GetProduct(ctx, opts.ID)
	if err != nil {
		return err
	}

	observations, err := store.ListObservationsSince(ctx, product.ID, nowUTC().Add(-stats.Window180d.Duration()))
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintf(os.Stdout, "no observations recorded for product %d\n", product.ID)
		return nil
	}

	maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)
	exported := downsampleObservations(observations, maxPoints)

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, product, exported); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("points", len(exported)).Msg("history exported as csv")
	}
	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, product, exported); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("points", len(exported)).Msg("history exported as png")
	}
	if opts.CSVPath != "" || opts.PNGPath != "" {
		return nil
	}

	display := observations
	if opts.Limit > 0 && len(display) > opts.Limit {
		display = display[len(display)-opts.Limit:]
	}

	fmt.Fprintf(os.Stdout, "Price history for %s (%s/%s)\n", product.Title, product.Store, product.SKU)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Recorded (UTC)\tPrice\tAvailable")
	for _, obs := range display {
		available := "yes"
		if !obs.WasAvailable {
			available = "no"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			obs.RecordedAt.UTC().Format("2006-01-02 15:04"),
			money.FormatValue(obs.Price), available)
	}
	return writer.Flush()
}

func downsampleObservations(observations []storage.PriceObservation, max int) []storage.PriceObservation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]storage.PriceObservation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

func writeHistoryCSV(path string, product storage.Product, observations []storage.PriceObservation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "store", "sku", "price", "was_available"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, obs := range observations {
		record := []string{
			obs.RecordedAt.UTC().Format(time.RFC3339),
			product.Store,
			product.SKU,
			obs.Price.String(),
			fmt.Sprintf("%t", obs.WasAvailable),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, product storage.Product, observations []storage.PriceObservation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(observations))
	prices := make([]float64, len(observations))
	for i, obs := range observations {
		x[i] = obs.RecordedAt
		prices[i] = obs.Price.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  product.Title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (R$)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
		},
	}
	if product.TargetPrice != nil {
		target := product.TargetPrice.InexactFloat64()
		targetValues := make([]float64, len(observations))
		for i := range targetValues {
			targetValues[i] = target
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Target",
			XValues: x,
			YValues: targetValues,
			Style: chart.Style{
				StrokeColor:     chart.ColorRed,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
