package ensemble

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/incomeml/core/model"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Member は投票に参加する推定器
type Member struct {
	Name      string
	Estimator model.Regressor
	// Weight は予測の重み。0 以下は 1 として扱う。
	Weight float64
}

func (m Member) weight() float64 {
	if m.Weight <= 0 {
		return 1
	}
	return m.Weight
}

// VotingRegressor はメンバーの予測の加重平均を返す
type VotingRegressor struct {
	Members []Member
}

// NewVotingRegressor は新しいVotingRegressorを作成
//
// 使用例:
//
//	v := ensemble.NewVotingRegressor(
//	    ensemble.Member{Name: "random_forest", Estimator: forest},
//	    ensemble.Member{Name: "linear", Estimator: lr},
//	)
func NewVotingRegressor(members ...Member) *VotingRegressor {
	return &VotingRegressor{Members: append([]Member(nil), members...)}
}

// Fit は全メンバーを同じデータで並行して学習させる
func (v *VotingRegressor) Fit(X, y mat.Matrix) error {
	if len(v.Members) == 0 {
		return errors.NewValidationError("members", "at least one estimator is required", 0)
	}

	var g errgroup.Group
	for _, m := range v.Members {
		g.Go(func() error {
			if err := m.Estimator.Fit(X, y); err != nil {
				return errors.Wrapf(err, "fit %s", m.Name)
			}
			return nil
		})
	}
	return g.Wait()
}

// Predict はメンバーの予測の加重平均を返す
func (v *VotingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !v.IsFitted() {
		return nil, errors.NewNotFittedError("VotingRegressor", "Predict")
	}

	r, _ := X.Dims()
	sum := mat.NewDense(r, 1, nil)
	total := 0.0
	for _, m := range v.Members {
		pred, err := m.Estimator.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "predict %s", m.Name)
		}
		w := m.weight()
		var scaled mat.Dense
		scaled.Scale(w, pred)
		sum.Add(sum, &scaled)
		total += w
	}
	sum.Scale(1/total, sum)
	return sum, nil
}

// IsFitted は全メンバーが学習済みかどうかを返す
func (v *VotingRegressor) IsFitted() bool {
	if len(v.Members) == 0 {
		return false
	}
	for _, m := range v.Members {
		if m.Estimator == nil || !m.Estimator.IsFitted() {
			return false
		}
	}
	return true
}

// String はVotingRegressorの文字列表現を返す
func (v *VotingRegressor) String() string {
	names := make([]string, len(v.Members))
	for i, m := range v.Members {
		names[i] = fmt.Sprintf("%s=%g", m.Name, m.weight())
	}
	return "VotingRegressor(" + strings.Join(names, ", ") + ")"
}

var _ model.Regressor = (*VotingRegressor)(nil)
