// Command foliar trains the enhanced ResNeXt-50 severity classifier,
// tunes its learning rate and weight decay with Cat Swarm Optimization,
// and reports whether the tuned configuration beats the default with a
// paired t-test.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/autodiff"
	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/data"
	"github.com/foliar-ml/foliar/internal/eval"
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/optim"
	"github.com/foliar-ml/foliar/internal/resnext"
	"github.com/foliar-ml/foliar/internal/search"
	"github.com/foliar-ml/foliar/internal/stats"
	"github.com/foliar-ml/foliar/internal/train"
)

type backend = *autodiff.AutodiffBackend[*cpu.Backend]

type options struct {
	epochs       int
	searchEpochs int
	batchSize    int
	samples      int
	imageSize    int
	cardinality  int
	seed         int64
	population   int
	iterations   int
	runs         int
	checkpoint   string
	lrMin        float64
	lrMax        float64
	wdMin        float64
	wdMax        float64
	lrStep       int
	lrGamma      float64
}

func main() {
	var opts options
	flag.IntVar(&opts.epochs, "epochs", 10, "full training epochs")
	flag.IntVar(&opts.searchEpochs, "search-epochs", 2, "training epochs per search candidate")
	flag.IntVar(&opts.batchSize, "batch", 4, "batch size")
	flag.IntVar(&opts.samples, "samples", 60, "training samples (validation uses half)")
	flag.IntVar(&opts.imageSize, "image-size", 64, "square image side in pixels")
	flag.IntVar(&opts.cardinality, "cardinality", 32, "branches per block")
	flag.Int64Var(&opts.seed, "seed", 42, "base random seed")
	flag.IntVar(&opts.population, "population", 5, "swarm population")
	flag.IntVar(&opts.iterations, "iterations", 10, "swarm iterations")
	flag.IntVar(&opts.runs, "runs", 5, "repeated runs for the significance test")
	flag.StringVar(&opts.checkpoint, "checkpoint", "foliar.ckpt", "checkpoint path")
	flag.Float64Var(&opts.lrMin, "lr-min", 1e-5, "learning rate lower bound")
	flag.Float64Var(&opts.lrMax, "lr-max", 1e-3, "learning rate upper bound")
	flag.Float64Var(&opts.wdMin, "wd-min", 0, "weight decay lower bound")
	flag.Float64Var(&opts.wdMax, "wd-max", 1e-2, "weight decay upper bound")
	flag.IntVar(&opts.lrStep, "lr-step", 5, "epochs between learning rate decays in full runs")
	flag.Float64Var(&opts.lrGamma, "lr-gamma", 0.1, "learning rate decay factor")
	flag.Parse()

	log.SetFlags(log.Ltime)
	if err := run(opts); err != nil {
		log.Fatalf("foliar: %+v", err)
	}
}

func run(opts options) error {
	be := autodiff.New(cpu.New())

	trainSet, err := data.NewSynthetic[backend](data.SyntheticConfig{
		NumSamples: opts.samples,
		BatchSize:  opts.batchSize,
		ImageSize:  opts.imageSize,
		Seed:       opts.seed,
	}, be)
	if err != nil {
		return err
	}
	valSet, err := data.NewSynthetic[backend](data.SyntheticConfig{
		NumSamples: opts.samples / 2,
		BatchSize:  opts.batchSize,
		ImageSize:  opts.imageSize,
		Seed:       opts.seed + 1,
	}, be)
	if err != nil {
		return err
	}

	defaults := optim.AdamConfig{}
	log.Printf("training baseline (%d epochs, default Adam)", opts.epochs)
	baseline, baseResult, err := trainOnce(be, trainSet, valSet, opts, defaults, opts.seed, opts.epochs, true)
	if err != nil {
		return errors.Wrap(err, "baseline training")
	}
	if err := nn.SaveState(opts.checkpoint, baseResult.BestState); err != nil {
		return err
	}
	log.Printf("baseline best val acc %.4f (epoch %d), checkpoint saved to %s",
		baseResult.BestValAcc, baseResult.BestEpoch, opts.checkpoint)

	if err := baseline.LoadStateDict(baseResult.BestState); err != nil {
		return err
	}
	if err := report(be, baseline, valSet, "baseline"); err != nil {
		return err
	}

	log.Printf("searching lr in [%g,%g], weight decay in [%g,%g] (%d cats, %d iterations)",
		opts.lrMin, opts.lrMax, opts.wdMin, opts.wdMax, opts.population, opts.iterations)
	swarm := search.New(search.Config{
		Population: opts.population,
		Iterations: opts.iterations,
		Seed:       opts.seed + 100,
		Logf:       log.Printf,
	})
	objective := func(position []float64) float64 {
		cfg := optim.AdamConfig{LR: float32(position[0]), WeightDecay: float32(position[1])}
		_, result, err := trainOnce(be, trainSet, valSet, opts, cfg, opts.seed+200, opts.searchEpochs, false)
		if err != nil {
			panic(err)
		}
		return result.History[len(result.History)-1].ValLoss
	}
	found, err := swarm.Minimize(objective, search.Box{
		Min: []float64{opts.lrMin, opts.wdMin},
		Max: []float64{opts.lrMax, opts.wdMax},
	})
	if err != nil {
		return errors.Wrap(err, "hyperparameter search")
	}
	tunedCfg := optim.AdamConfig{LR: float32(found.Position[0]), WeightDecay: float32(found.Position[1])}
	log.Printf("search done: lr=%g weight_decay=%g (val loss %.4f, %d evaluations)",
		found.Position[0], found.Position[1], found.Value, found.Evals)

	log.Printf("retraining with tuned hyperparameters (%d epochs)", opts.epochs)
	tuned, tunedResult, err := trainOnce(be, trainSet, valSet, opts, tunedCfg, opts.seed, opts.epochs, true)
	if err != nil {
		return errors.Wrap(err, "tuned training")
	}
	tunedPath := opts.checkpoint + ".tuned"
	if err := nn.SaveState(tunedPath, tunedResult.BestState); err != nil {
		return err
	}
	log.Printf("tuned best val acc %.4f (epoch %d), checkpoint saved to %s",
		tunedResult.BestValAcc, tunedResult.BestEpoch, tunedPath)

	if err := tuned.LoadStateDict(tunedResult.BestState); err != nil {
		return err
	}
	if err := report(be, tuned, valSet, "tuned"); err != nil {
		return err
	}

	return significance(be, trainSet, valSet, opts, defaults, tunedCfg)
}

// trainOnce builds a fresh model seeded from seed and fits it for the
// given number of epochs. With schedule set, the learning rate follows a
// step decay from the optimizer's starting rate; short search and
// significance runs train at a fixed rate.
func trainOnce(be backend, trainSet, valSet data.Source[backend], opts options, adam optim.AdamConfig, seed int64, epochs int, schedule bool) (*resnext.SeverityNet[backend], *train.Result, error) {
	rng := rand.New(rand.NewSource(seed))
	model, err := resnext.NewSeverityNet[backend](resnext.Config{Cardinality: opts.cardinality}, rng, be)
	if err != nil {
		return nil, nil, err
	}

	optimizer := optim.NewAdam(model.Parameters(), adam)
	cfg := train.Config{
		Epochs: epochs,
		Logf:   log.Printf,
	}
	if schedule {
		cfg.Scheduler = train.StepLR{
			Base:     optimizer.GetLR(),
			StepSize: opts.lrStep,
			Gamma:    float32(opts.lrGamma),
		}
	}
	trainer := train.NewTrainer(be, optimizer, cfg)
	result, err := trainer.Fit(model, trainSet, valSet)
	if err != nil {
		return nil, nil, err
	}
	return model, result, nil
}

// report prints the metric block and the confusion heatmap for a model.
func report(be backend, model *resnext.SeverityNet[backend], valSet data.Source[backend], label string) error {
	preds, err := eval.Collect[backend](model, valSet, be)
	if err != nil {
		return err
	}
	metrics, err := eval.Compute(preds, model.NumClasses())
	if err != nil {
		return err
	}
	fmt.Printf("== %s ==\n%s", label, metrics.Format(eval.DefaultClassNames))
	return eval.TextHeatmap{W: os.Stdout}.Render(metrics.Confusion, eval.DefaultClassNames)
}

// significance runs repeated short trainings for the default and tuned
// configurations and tests the paired validation accuracies.
func significance(be backend, trainSet, valSet data.Source[backend], opts options, defaults, tuned optim.AdamConfig) error {
	if opts.runs < 2 {
		log.Printf("skipping significance test: need at least 2 runs, have %d", opts.runs)
		return nil
	}

	defaultAcc := make([]float64, opts.runs)
	tunedAcc := make([]float64, opts.runs)
	for i := 0; i < opts.runs; i++ {
		seed := opts.seed + int64(1000+i)
		_, result, err := trainOnce(be, trainSet, valSet, opts, defaults, seed, opts.searchEpochs, false)
		if err != nil {
			return errors.Wrapf(err, "significance run %d (default)", i)
		}
		defaultAcc[i] = result.History[len(result.History)-1].ValAcc

		_, result, err = trainOnce(be, trainSet, valSet, opts, tuned, seed, opts.searchEpochs, false)
		if err != nil {
			return errors.Wrapf(err, "significance run %d (tuned)", i)
		}
		tunedAcc[i] = result.History[len(result.History)-1].ValAcc
	}

	test, err := stats.PairedTTest(tunedAcc, defaultAcc)
	if err != nil {
		return errors.Wrap(err, "significance test")
	}
	fmt.Printf("paired t-test over %d runs: mean acc diff=%.4f t=%.4f p=%.4f\n",
		opts.runs, test.MeanDiff, test.T, test.P)
	if test.P < 0.05 {
		fmt.Println("tuned configuration differs significantly from the default (p < 0.05)")
	} else {
		fmt.Println("no significant difference between tuned and default configurations")
	}
	return nil
}
