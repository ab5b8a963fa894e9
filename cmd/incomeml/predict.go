package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/YuminosukeSato/incomeml/core/frame"
	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/performance"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/spf13/cobra"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		modelPath string
		state     string
		input     string
		output    string
		chunkSize int
		workers   int
	)
	ints := make(map[string]*int, len(income.FormFields)-1)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the monthly income of one respondent, or of every row of --input",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				modelPath = a.cfg.Model.ArtifactPath
			}
			if input != "" {
				return predictFile(cmd, a, modelPath, input, output, performance.NewChunkedProcessor(chunkSize, workers))
			}

			record, err := income.ParseForm(func(key string) (string, bool) {
				if key == income.ColState {
					return state, cmd.Flags().Changed(key)
				}
				v, ok := ints[key]
				if !ok || !cmd.Flags().Changed(key) {
					return "", false
				}
				return strconv.Itoa(*v), true
			})
			if err != nil {
				return err
			}
			if err := record.Validate(); err != nil {
				return err
			}

			artifact, err := income.LoadArtifact(modelPath)
			if err != nil {
				return err
			}
			raw, _, err := artifact.Predict(record)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.cfg.Adjustment.Apply(raw[0], time.Now()))
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "artifact path; defaults to model.artifact_path")
	cmd.Flags().StringVar(&state, income.ColState, "", "state abbreviation, e.g. SP")
	for _, key := range income.FormFields[1:] {
		ints[key] = cmd.Flags().Int(key, 0, "survey code for "+key)
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "table to score (.csv, .csv.gz or .arrow)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV file for --input results; defaults to stdout")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", performance.DefaultChunkSize, "rows per batch for --input")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent batches for --input (0 = CPU count)")
	return cmd
}

// predictFile scores every row of input and writes the table with the
// prediction columns appended as CSV. Rows are not range-checked.
func predictFile(cmd *cobra.Command, a *app, modelPath, input, output string, p *performance.ChunkedProcessor) (err error) {
	logger := log.GetLoggerWithName("cli")

	artifact, err := income.LoadArtifact(modelPath)
	if err != nil {
		return err
	}
	table, err := income.LoadTable(input)
	if err != nil {
		return err
	}

	start := time.Now()
	raw, fallbacks, err := artifact.PredictBatch(cmd.Context(), table, p)
	if err != nil {
		return err
	}
	result, err := income.AppendPredictions(table, raw, a.cfg.Adjustment, time.Now())
	if err != nil {
		return err
	}
	logger.Info("Batch scored",
		log.PathKey, input,
		log.SamplesKey, len(raw),
		log.FallbacksKey, fallbacks,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, ferr := os.Create(output)
		if ferr != nil {
			return errors.Wrapf(ferr, "failed to create %s", output)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "failed to close output")
			}
		}()
		w = f
	}
	return frame.WriteCSV(w, result)
}
