package lightgbm

import (
	"fmt"
	"strings"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node split on value <= threshold
	NumericalNode
)

// Node represents a single node in a boosted tree.
// Children are indices into Tree.Nodes; -1 marks a leaf.
type Node struct {
	NodeType   NodeType
	LeftChild  int
	RightChild int

	// Split information (for non-leaf nodes)
	SplitFeature int
	Threshold    float64
	Gain         float64

	// Leaf information (for leaf nodes)
	LeafValue float64
	LeafCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.NodeType == LeafNode
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	TreeIndex     int
	NumLeaves     int
	ShrinkageRate float64 // learning rate applied to this tree

	Nodes []Node
}

// Predict returns the shrunk output of t for one sample.
// NaN never satisfies value <= threshold and therefore goes right.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// Model represents a complete boosted ensemble
type Model struct {
	Objective     string
	NumIteration  int
	BestIteration int // 0 when early stopping was not used
	LearningRate  float64
	NumLeaves     int
	MaxDepth      int
	NumFeatures   int

	// InitScore is the constant baseline every prediction starts from.
	InitScore float64
	Trees     []Tree
}

// NewModel creates a new empty model
func NewModel() *Model {
	return &Model{Trees: make([]Tree, 0)}
}

// PredictRow returns the raw score of one sample.
func (m *Model) PredictRow(features []float64) float64 {
	score := m.InitScore
	for i := range m.Trees {
		score += m.Trees[i].Predict(features)
	}
	return score
}

// GetFeatureImportance returns per-feature importance. importanceType is
// "split" (number of splits using the feature) or "gain" (total split gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)
	gain := strings.EqualFold(importanceType, "gain")
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			if gain {
				importance[node.SplitFeature] += node.Gain
			} else {
				importance[node.SplitFeature]++
			}
		}
	}
	return importance
}

// String returns a short description of the model.
func (m *Model) String() string {
	return fmt.Sprintf("Model(objective=%s, trees=%d, features=%d, init_score=%.4f)",
		m.Objective, len(m.Trees), m.NumFeatures, m.InitScore)
}
