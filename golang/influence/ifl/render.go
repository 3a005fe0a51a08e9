package ifl

import (
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//InfluenceGraph builds a bipartite graph of the topK most influential
//training points per test point. Test nodes are boxes, training points keep
//the default shape, and edges carry the influence score. topK outside
//(0, n_train] means all training points.
func InfluenceGraph(scores *mat.Dense, topK int) (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	nTrain, nTest := scores.Dims()
	if topK <= 0 || topK > nTrain {
		topK = nTrain
	}

	trainNodes := make(map[int]*cgraph.Node)

	for j := 0; j < nTest; j++ {
		testNode, err := graph.CreateNode(fmt.Sprintf("test_%d", j))
		HandleError(err)
		testNode.Set("shape", "box")
		testNode.Set("label", fmt.Sprintf("test %d", j))

		order := make([]int, nTrain)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return math.Abs(scores.At(order[a], j)) > math.Abs(scores.At(order[b], j))
		})

		for _, i := range order[:topK] {
			trainNode, ok := trainNodes[i]
			if !ok {
				trainNode, err = graph.CreateNode(fmt.Sprintf("train_%d", i))
				HandleError(err)
				trainNode.Set("label", fmt.Sprintf("train %d", i))
				trainNodes[i] = trainNode
			}
			edge, err := graph.CreateEdge("", trainNode, testNode)
			HandleError(err)
			edge.SetLabel(fmt.Sprintf("%6.5f", scores.At(i, j)))
		}
	}

	return graphViz, graph
}

//RenderInfluenceGraph renders the influence graph into a picture file.
func RenderInfluenceGraph(scores *mat.Dense, topK int, figureType, fileName string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	graphViz, graph := InfluenceGraph(scores, topK)
	HandleError(graphViz.RenderFilename(graph, graphvizType, fileName))
}
