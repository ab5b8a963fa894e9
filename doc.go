// Package incomeml predicts the monthly income (BRL) of Brazilian workers from
// PNAD-C survey answers and serves the model over HTTP.
//
// The core is a preprocessing pipeline: a declarative list of column
// derivations followed by a smoothed target-mean encoder that falls back to the
// global mean for categories it has never seen. The encoded features feed a
// voting ensemble of a random forest and a gradient boosted model, optionally
// joined by a ridge regression.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/incomeml/income"
//	)
//
//	func main() {
//	    cfg := income.DefaultTrainConfig()
//	    cfg.DataPath = "pnad.csv.gz"
//
//	    artifact, err := income.TrainFile(context.Background(), cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    raw, _, err := artifact.Predict(income.Record{State: "SP", Age: 35, ...})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Prediction:", raw[0])
//	}
//
// # Packages
//
//   - core/frame: Named, typed columns with CSV and Arrow IPC readers
//   - preprocessing: FeatureDeriver, TargetEncoder, Pipeline, StandardScaler
//   - income: Survey schema, derivation rules, datasets, training, artifacts
//   - sklearn/tree: CART DecisionTreeRegressor
//   - sklearn/ensemble: RandomForestRegressor and VotingRegressor
//   - sklearn/lightgbm: Histogram-based gradient boosting (LGBMRegressor)
//   - linear: Ridge-capable LinearRegression
//   - metrics: Evaluation metrics (MSE, RMSE, MAE, R²)
//   - serving: gin HTTP endpoint with Prometheus metrics
//   - config: YAML configuration
//   - core/model: Estimator interfaces, fitted state, persistence
//   - core/parallel, performance: Parallel processing utilities
//   - pkg/errors, pkg/log: Structured errors and zerolog-backed logging
//
// # Command Line
//
//	incomeml train --data pnad.csv.gz --out model.gob.zst
//	incomeml serve --model model.gob.zst
//	incomeml predict --model model.gob.zst --input respondents.csv
package incomeml
