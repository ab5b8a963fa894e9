package main

import (
	"encoding/json"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		dataPath string
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the pipeline and ensemble on a dataset and save the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Training
			if dataPath != "" {
				cfg.DataPath = dataPath
			}
			if outPath == "" {
				outPath = a.cfg.Model.ArtifactPath
			}

			artifact, err := income.TrainFile(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := artifact.Save(outPath); err != nil {
				return err
			}
			log.GetLoggerWithName("cli").Info("Artifact saved",
				log.PathKey, outPath,
				log.ArtifactIDKey, artifact.ID.String(),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(artifact.Info())
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "training table (.csv, .csv.gz or .arrow); overrides training.data_path")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "artifact path; defaults to model.artifact_path")
	return cmd
}
