package util

import (
	"github.com/pkg/errors"

	"toxrank/ml"
)

// LogHyperparameters forwards the whitelisted config sections, plus derived
// parameter counts, to every attached experiment logger. Callers gate this
// on rank zero.
func LogHyperparameters(cfg Config, model ml.ModelParams, loggers []ExperimentLogger) error {
	hparams := Hyperparameters(cfg, model)
	for _, lg := range loggers {
		if err := lg.LogHyperparams(hparams); err != nil {
			return errors.Wrapf(err, "logger %s", lg.Name())
		}
	}
	return nil
}

// Hyperparameters selects which parts of the run config are saved by the
// experiment loggers and adds the model's parameter counts.
func Hyperparameters(cfg Config, model ml.ModelParams) map[string]interface{} {
	hparams := map[string]interface{}{
		"trainer":    cfg.Trainer,
		"model":      cfg.Model,
		"datamodule": cfg.Datamodule,
	}
	if cfg.Seed != 0 {
		hparams["seed"] = cfg.Seed
	}
	if len(cfg.Callbacks) > 0 {
		hparams["callbacks"] = cfg.Callbacks
	}

	total, trainable := ml.CountParams(model)
	hparams["model/params/total"] = total
	hparams["model/params/trainable"] = trainable
	hparams["model/params/non_trainable"] = total - trainable
	return hparams
}
