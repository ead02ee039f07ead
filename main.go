package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/wangkuiyi/gotorch/nn/initializer"

	"toxrank/ds"
	"toxrank/ds/network"
	"toxrank/ds/protocols"
	"toxrank/ml"
	"toxrank/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "run configuration file")
	rank := flag.Int("rank", 0, "worker rank; rank 0 owns logging and reporting")
	scoresPath := flag.String("scores", "", "csv of lessToxic,moreToxic score pairs from the scoring phase")
	flag.Parse()

	util.InitLogger(*rank)
	log := util.Logger

	cfg, err := util.LoadConfig(*configPath)
	if err != nil {
		log.Exception(err, "cannot load config")
		os.Exit(1)
	}
	cfg, err = util.Derive(cfg)
	if errors.Is(err, util.ErrMissingExperimentName) {
		log.Info("Running in experiment mode without the experiment name specified! Set name: in the config.")
		log.Info("Exiting...")
		os.Exit(1)
	}
	if err != nil {
		log.Exception(err, "invalid config")
		os.Exit(1)
	}
	if cfg.IgnoreWarnings {
		log.Info("Disabling warnings! <ignore_warnings: true>")
		log.Quiet()
	}
	if cfg.Trainer.FastDevRun {
		log.Info("Forcing debugger friendly configuration! <trainer.fast_dev_run: true>")
	}

	if *rank == 0 {
		if err := util.PrintConfig(cfg, os.Stdout); err != nil {
			log.Exception(err, "cannot print config")
		}
	}

	initializer.ManualSeed(cfg.Seed)

	model := loadModel(cfg, log)
	opt := buildOptimizer(cfg, model, log)
	log.Infof("optimizer holds %d parameter groups", len(opt.Groups()))

	loggers := attachLoggers(cfg)
	if *rank == 0 {
		if err := util.LogHyperparameters(cfg, model, loggers); err != nil {
			log.Exception(err, "cannot log hyperparameters")
		}
	}

	// scoring phase: accumulate locally, then reduce across workers
	metric := &ml.PairAccuracy{}
	if *scoresPath != "" {
		if err := scoreFile(*scoresPath, metric); err != nil {
			log.Exception(err, "cannot score ", *scoresPath)
			os.Exit(1)
		}
	}
	if cfg.Distributed.NumNodes > 1 {
		if err := reduceMetric(cfg, *rank, metric); err != nil {
			log.Exception(err, "metric reduction failed")
			os.Exit(1)
		}
	}

	if *rank == 0 {
		if acc, err := metric.Compute(); err == nil {
			log.Infof("validation pair accuracy: %.4f", acc)
		} else {
			log.Info("no scored pairs; skipping accuracy report")
		}
	}

	util.Finish(loggers, log)
}

func loadModel(cfg util.Config, log *util.RankedLogger) *ml.EncoderModel {
	var model *ml.EncoderModel
	var err error
	if cfg.Model.FreezeEncoder {
		model, err = ml.LoadPretrainedFrozen(cfg.Model.Pretrained, cfg.Model.Encoder, true)
	} else {
		model, err = ml.LoadPretrained(cfg.Model.Pretrained, cfg.Model.Encoder, cfg.Model.RemoveDropout)
	}
	if err != nil {
		log.Exception(err, "cannot load pretrained model")
		os.Exit(1)
	}
	return model
}

func buildOptimizer(cfg util.Config, model *ml.EncoderModel, log *util.RankedLogger) *ml.GroupedSGD {
	mc := cfg.Model
	if mc.LayerwiseLR {
		groups, err := ml.LayerwiseDecayGroups(model, mc.LearningRate, mc.WeightDecay, mc.LayerwiseLRFactor)
		if err != nil {
			log.Exception(err, "cannot build parameter groups")
			os.Exit(1)
		}
		return ml.NewGroupedSGD(groups)
	}
	return ml.NewGroupedSGD([]ml.ParamGroup{{
		Params:      ml.TrainableParams(model),
		LR:          mc.LearningRate,
		WeightDecay: mc.WeightDecay,
	}})
}

func attachLoggers(cfg util.Config) []util.ExperimentLogger {
	hfile := cfg.Logger.HParamsFile
	if hfile == "" {
		hfile = "hparams.log"
	}
	loggers := []util.ExperimentLogger{util.NewFileLogger(hfile)}
	if cfg.Logger.TrackerURL != "" {
		run := cfg.Name
		if run == "" {
			run = "default"
		}
		loggers = append(loggers, util.NewTrackerLogger(cfg.Logger.TrackerURL, run))
	}
	return loggers
}

func reduceMetric(cfg util.Config, rank int, metric *ml.PairAccuracy) error {
	addr, ok := cfg.Distributed.Peers[rank]
	if !ok {
		return pkgerrors.Errorf("rank %d has no address in distributed.peers", rank)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "bad distributed.peers address for rank %d: %q", rank, addr)
	}
	netw := network.NewTCP[protocols.MetricSyncMessage](rank, ":"+port, cfg.Distributed.Peers)
	if err := netw.Listen(); err != nil {
		return err
	}
	return ds.AllReduce(metric, netw, rank, cfg.Distributed.NumNodes, 30*time.Second)
}

// scoreFile feeds a csv of lessToxic,moreToxic score pairs into the metric.
// A single header row is tolerated.
func scoreFile(path string, metric *ml.PairAccuracy) error {
	f, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot open scores")
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return pkgerrors.Wrap(err, "cannot parse scores")
	}

	less := make([]float32, 0, len(rows))
	more := make([]float32, 0, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return pkgerrors.Errorf("scores row %d: want 2 columns, got %d", i+1, len(row))
		}
		a, errA := strconv.ParseFloat(row[0], 32)
		b, errB := strconv.ParseFloat(row[1], 32)
		if errA != nil || errB != nil {
			if i == 0 {
				continue
			}
			return pkgerrors.Errorf("scores row %d: not a float pair: %v", i+1, row)
		}
		less = append(less, float32(a))
		more = append(more, float32(b))
	}
	return metric.Update(less, more)
}
