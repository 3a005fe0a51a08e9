package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/patrickmesana/pyDVL/golang/influence/ifl"
	"gonum.org/v1/gonum/mat"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	ifl.HandleError(err)
	defer func() { ifl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	ifl.HandleError(decoder.Decode(out))
}

//InversionConfig selects an inversion method by name and carries the
//method-specific tuning knobs. It is mapped onto a tagged solver variant
//once, before any solve starts.
type InversionConfig struct {
	Method          string  `json:"method"` // "direct", "cg" or "lissa"
	Tol             float64 `json:"tol"`
	MaxIter         int     `json:"max_iter"`
	Depth           int     `json:"depth"`
	Repeats         int     `json:"n_repeats"`
	Scale           float64 `json:"scale"`
	BatchSize       int     `json:"batch_size"`
	Seed            int64   `json:"seed"`
	NormGrowthBound float64 `json:"norm_growth_bound"`
}

func solverFromConfig(config InversionConfig, train []ifl.Sample) ifl.SolverConfig {
	switch config.Method {
	case "", "direct":
		return ifl.DirectConfig{}
	case "cg":
		return ifl.CGConfig{Tol: config.Tol, MaxIter: config.MaxIter}
	case "lissa":
		return ifl.LissaConfig{
			Depth:           config.Depth,
			Repeats:         config.Repeats,
			Scale:           config.Scale,
			Sampler:         ifl.NewUniformSampler(train, config.BatchSize, config.Seed),
			NormGrowthBound: config.NormGrowthBound,
		}
	}
	log.Panicf("unknown inversion method %q", config.Method)
	return nil
}

type UpConfig struct {
	FileNameTrainFeatures string          `json:"filename_train_features"`
	FileNameTrainTarget   string          `json:"filename_train_target"`
	FileNameTestFeatures  string          `json:"filename_test_features"`
	FileNameTestTarget    string          `json:"filename_test_target"`
	FileNameInfluence     string          `json:"filename_influence"`
	HessianRegularization float64         `json:"hessian_regularization"`
	ThreadsNum            int             `json:"threads_num"`
	Inversion             InversionConfig `json:"inversion"`
}

//loadSamples reads the four npy components, pairs them into oracle samples
//and fits the linear model the influence scores are computed around.
func loadSamples(config UpConfig) (train, test []ifl.Sample, theta *mat.VecDense, dim int) {
	log.Print("\ttry to load train features <", config.FileNameTrainFeatures, ">")
	trainFeatures := ifl.ReadNpy(config.FileNameTrainFeatures)
	log.Print("\ttry to load train target <", config.FileNameTrainTarget, ">")
	trainTarget := ifl.ReadNpy(config.FileNameTrainTarget)
	log.Print("\ttry to load test features <", config.FileNameTestFeatures, ">")
	testFeatures := ifl.ReadNpy(config.FileNameTestFeatures)
	log.Print("\ttry to load test target <", config.FileNameTestTarget, ">")
	testTarget := ifl.ReadNpy(config.FileNameTestTarget)

	_, dim = trainFeatures.Dims()
	log.Print("loaded ", ifl.Height(trainFeatures), " train and ", ifl.Height(testFeatures), " test records")
	train = ifl.PointsFromMatrices(trainFeatures, trainTarget)
	test = ifl.PointsFromMatrices(testFeatures, testTarget)

	var err error
	theta, err = ifl.FitLinear(trainFeatures, trainTarget)
	ifl.HandleError(err)
	return
}

func up(srcConfig string) {
	var config UpConfig
	decodeConfig(srcConfig, &config)

	train, test, theta, dim := loadSamples(config)

	params := ifl.InfluenceParams{
		Oracle:     ifl.NewLinearMSEOracle(dim),
		Theta:      theta,
		Lambda:     config.HessianRegularization,
		Solver:     solverFromConfig(config.Inversion, train),
		ThreadsNum: config.ThreadsNum,
	}

	log.Printf("up-weighting influence: %d train x %d test, method %s", len(train), len(test), config.Inversion.Method)
	scores, err := ifl.UpWeighting(params, train, test)
	ifl.HandleError(err)

	ifl.WriteNpy(config.FileNameInfluence, scores)
}

type PerturbationConfig struct {
	UpConfig
	TestIndex int `json:"test_index"`
}

func perturbation(srcConfig string) {
	var config PerturbationConfig
	decodeConfig(srcConfig, &config)

	train, test, theta, dim := loadSamples(config.UpConfig)
	if config.TestIndex < 0 || config.TestIndex >= len(test) {
		log.Panicf("test index %d out of range [0, %d)", config.TestIndex, len(test))
	}

	params := ifl.InfluenceParams{
		Oracle:     ifl.NewLinearMSEOracle(dim),
		Theta:      theta,
		Lambda:     config.HessianRegularization,
		Solver:     solverFromConfig(config.Inversion, train),
		ThreadsNum: config.ThreadsNum,
	}

	log.Printf("perturbation influence: %d train x test %d", len(train), config.TestIndex)
	scores, err := ifl.Perturbation(params, train, []ifl.Sample{test[config.TestIndex]})
	ifl.HandleError(err)

	//one test sample: flatten the (n_train, 1, d_x) tensor into a matrix
	shape := scores.Shape()
	flattened := mat.NewDense(shape[0], shape[2], nil)
	for p := 0; p < shape[0]; p++ {
		for q := 0; q < shape[2]; q++ {
			value, err := scores.At(p, 0, q)
			ifl.HandleError(err)
			flattened.Set(p, q, value.(float64))
		}
	}
	ifl.WriteNpy(config.FileNameInfluence, flattened)
}

type GraphConfig struct {
	FileNameInfluence string `json:"filename_influence"`
	FigureType        string `json:"figure_type"`
	FileNameFigure    string `json:"filename_figure"`
	TopK              int    `json:"top_k"`
}

func graph(srcConfig string) {
	var config GraphConfig
	decodeConfig(srcConfig, &config)

	scores := ifl.ReadNpy(config.FileNameInfluence)
	ifl.RenderInfluenceGraph(scores, config.TopK, config.FigureType, config.FileNameFigure)
}

func main() {
	runMode := flag.String("mode", "up", "you can select either 'up', 'perturbation' or 'graph' modes")
	config := flag.String("config", "influence_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"up":           up,
		"perturbation": perturbation,
		"graph":        graph,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		ifl.HandleError(err)
		defer func() { ifl.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
