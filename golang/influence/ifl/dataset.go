package ifl

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//HandleError aborts on errors from IO paths. Solver APIs return errors
//instead of calling this.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

//Height returns the number of rows of a dense matrix.
func Height(denseMat *mat.Dense) int {
	h, _ := denseMat.Dims()
	return h
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}

//WriteNpy writes a dense matrix into an npy file.
func WriteNpy(fileName string, denseMat *mat.Dense) {
	dst, err := os.Create(fileName)
	HandleError(err)
	defer func() { HandleError(dst.Close()) }()
	HandleError(npyio.Write(dst, denseMat))
}

//PointsFromMatrices pairs rows of a feature matrix with entries of a target
//column into oracle samples.
func PointsFromMatrices(features, target *mat.Dense) []Sample {
	h, d := features.Dims()
	targetH, targetW := target.Dims()
	if targetH != h {
		log.Panicf("the target height %d is not equal to the feature height %d", targetH, h)
	}
	if targetW != 1 {
		log.Panicf("the width of target should be 1 not %d", targetW)
	}

	points := make([]Sample, h)
	for p := 0; p < h; p++ {
		x := mat.NewVecDense(d, nil)
		for q := 0; q < d; q++ {
			x.SetVec(q, features.At(p, q))
		}
		points[p] = LabeledPoint{X: x, Y: target.At(p, 0)}
	}
	return points
}
