package ifl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestInfluenceGraphBuilds(t *testing.T) {
	scores := mat.NewDense(3, 2, []float64{
		0.5, -0.1,
		-2.0, 0.3,
		0.1, 1.7,
	})

	graphViz, graph := InfluenceGraph(scores, 2)
	require.NotNil(t, graphViz)
	require.NotNil(t, graph)
}

func TestInfluenceGraphTopKClamped(t *testing.T) {
	scores := mat.NewDense(2, 1, []float64{1, -1})

	//topK larger than the training set falls back to all points
	_, graph := InfluenceGraph(scores, 10)
	require.NotNil(t, graph)
}
