package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/forecast/internal/batch"
	"github.com/YuminosukeSato/forecast/internal/config"
	"github.com/YuminosukeSato/forecast/internal/demand"
	"github.com/YuminosukeSato/forecast/internal/evaluate"
	"github.com/YuminosukeSato/forecast/internal/price"
	"github.com/YuminosukeSato/forecast/pkg/log"
)

// --- demand batch scoring ---

var demandCmd = &cobra.Command{
	Use:   "demand",
	Short: "Score a demand CSV file offline",
	Long: `Score a demand CSV file offline.

The input file uses the same columns as the HTTP API:
record_ID,week,store_id,sku_id,total_price,base_price,is_featured_sku,is_display_sku
with total_price optional. The output file has record_ID,units_sold rows
in input order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log.Setup(cfg.LogLevel)

		pipeline, err := demand.LoadPipeline(cfg.DemandModelDir, cfg.DemandEncoderDir)
		if err != nil {
			return err
		}
		return batch.ScoreFile(pipeline, input, output)
	},
}

// --- price one-shot prediction ---

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Predict weekly sales for one store and department",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _ := cmd.Flags().GetInt("store")
		dept, _ := cmd.Flags().GetInt("dept")
		date, _ := cmd.Flags().GetString("date")
		strategy, _ := cmd.Flags().GetString("strategy")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log.Setup(cfg.LogLevel)

		pipeline, err := price.LoadPipeline(cfg.PriceDatasetDir, cfg.PriceModelDir, cfg.PriceDefaultStrategy)
		if err != nil {
			return err
		}

		request := &price.Request{Store: store, Dept: dept, Date: date, Strategy: strategy}
		if cmd.Flags().Changed("holiday") {
			holiday, _ := cmd.Flags().GetBool("holiday")
			request.IsHoliday = &holiday
		}

		result, err := pipeline.Predict(request)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	},
}

// --- offline evaluation ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compare a predictions CSV against actuals",
	Long: `Compare a predictions CSV against actuals.

Both files need record_ID and units_sold columns; rows are joined on
record_ID. Prints RMSLE, RMSE and MAE, and optionally writes a
predicted-vs-actual scatter plot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actualPath, _ := cmd.Flags().GetString("actuals")
		predictedPath, _ := cmd.Flags().GetString("predictions")
		plotPath, _ := cmd.Flags().GetString("plot")

		actual, err := evaluate.LoadSeries(actualPath, "record_ID", "units_sold")
		if err != nil {
			return err
		}
		predicted, err := evaluate.LoadSeries(predictedPath, "record_ID", "units_sold")
		if err != nil {
			return err
		}
		actualValues, predictedValues := evaluate.Align(actual, predicted)
		if len(actualValues) == 0 {
			return fmt.Errorf("no records matched between %s and %s", actualPath, predictedPath)
		}

		report, err := evaluate.Evaluate(actualValues, predictedValues)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}

		if plotPath != "" {
			if err := evaluate.SavePredictionPlot(actualValues, predictedValues, plotPath); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "plot written to %s\n", plotPath)
		}
		return nil
	},
}

func init() {
	demandCmd.Flags().String("input", "", "input CSV path")
	demandCmd.Flags().String("output", "", "output CSV path")
	_ = demandCmd.MarkFlagRequired("input")
	_ = demandCmd.MarkFlagRequired("output")

	priceCmd.Flags().Int("store", 0, "store number")
	priceCmd.Flags().Int("dept", 0, "department number")
	priceCmd.Flags().String("date", "", "week date in YYYY-MM-DD format")
	priceCmd.Flags().Bool("holiday", false, "override the holiday flag")
	priceCmd.Flags().String("strategy", "", "strategy name (defaults to the configured one)")
	_ = priceCmd.MarkFlagRequired("store")
	_ = priceCmd.MarkFlagRequired("dept")
	_ = priceCmd.MarkFlagRequired("date")

	evaluateCmd.Flags().String("actuals", "", "actuals CSV path")
	evaluateCmd.Flags().String("predictions", "", "predictions CSV path")
	evaluateCmd.Flags().String("plot", "", "optional scatter plot output path")
	_ = evaluateCmd.MarkFlagRequired("actuals")
	_ = evaluateCmd.MarkFlagRequired("predictions")
}
