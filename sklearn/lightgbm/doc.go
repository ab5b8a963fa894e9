// Package lightgbm provides a pure Go gradient boosting regressor modelled on
// LightGBM's training algorithm.
//
// Features are pre-binned into at most MaxBin histogram bins. Each boosting
// round fits one tree to the gradients and hessians of the objective, growing
// it leaf-wise: the leaf whose best histogram split has the largest gain is
// split next, until NumLeaves is reached. Leaf outputs are the regularized
// Newton step -G/(H+lambda), shrunk by the learning rate.
//
// # scikit-learn Compatible API
//
//	reg := lightgbm.NewLGBMRegressor().
//	    WithNumIterations(200).
//	    WithLearningRate(0.05).
//	    WithEarlyStopping(10, 0.1)
//	if err := reg.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	predictions, err := reg.Predict(XTest)
//
// Supported objectives are "regression" (L2), "regression_l1" and "huber".
// Bagging (Subsample/SubsampleFreq) and per-tree feature sampling
// (ColsampleBytree) are seeded by RandomState, so training is reproducible.
//
// A fitted LGBMRegressor holds only exported data and can be persisted with
// core/model.SaveModel.
package lightgbm
