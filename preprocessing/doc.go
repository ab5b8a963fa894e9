// Package preprocessing は特徴量の導出とエンコーディングを提供します。
//
// 中心となるのは Pipeline です。宣言的な列導出 (FeatureDeriver) の後に
// 平滑化ターゲット平均エンコーダ (TargetEncoder) を適用します。
//
//	p := preprocessing.NewPipeline(
//	    preprocessing.NewFeatureDeriver(derivations...),
//	    preprocessing.NewTargetEncoder([]string{"state", "region"}, preprocessing.DefaultSmoothing),
//	)
//	fitted, err := p.Fit(X, y)
//	Xt, err := fitted.Dense(Xnew)
//
// Pipeline と TargetEncoder は設定値であり状態を持ちません。Fit は不変の
// FittedPipeline / TargetMeanTable を返し、これらはロックなしで複数の
// goroutine から同時に Transform できます。
//
// このパッケージはログを出力しません。エラーはすべて呼び出し元に返されます。
package preprocessing
