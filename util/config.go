package util

import (
	"errors"
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"toxrank/ml"
)

// ErrMissingExperimentName is returned by Derive when the run is in
// experiment mode but no experiment name is set. The caller decides whether
// to terminate.
var ErrMissingExperimentName = errors.New("experiment mode requires an experiment name")

// TrainerConfig mirrors the trainer section of the run config.
type TrainerConfig struct {
	GPUs            int     `json:"gpus" yaml:"gpus"`
	MaxEpochs       int     `json:"max_epochs" yaml:"max_epochs"`
	GradientClipVal float64 `json:"gradient_clip_val" yaml:"gradient_clip_val"`
	FastDevRun      bool    `json:"fast_dev_run" yaml:"fast_dev_run"`
}

// ModelConfig carries everything the model setup path needs: the pretrained
// checkpoint, the encoder architecture and the optimizer-group settings.
type ModelConfig struct {
	Pretrained        string           `json:"pretrained" yaml:"pretrained"`
	Encoder           ml.EncoderConfig `json:"encoder" yaml:"encoder"`
	LearningRate      float64          `json:"learning_rate" yaml:"learning_rate"`
	WeightDecay       float64          `json:"weight_decay" yaml:"weight_decay"`
	LayerwiseLRFactor float64          `json:"layerwise_learning_rate_factor" yaml:"layerwise_learning_rate_factor"`
	LayerwiseLR       bool             `json:"layerwise_learning_rate" yaml:"layerwise_learning_rate"`
	RemoveDropout     bool             `json:"remove_dropout" yaml:"remove_dropout"`
	FreezeEncoder     bool             `json:"freeze_encoder" yaml:"freeze_encoder"`
}

type DatamoduleConfig struct {
	TrainFile  string `json:"train_file" yaml:"train_file"`
	ValFile    string `json:"val_file" yaml:"val_file"`
	BatchSize  int    `json:"batch_size" yaml:"batch_size"`
	NumWorkers int    `json:"num_workers" yaml:"num_workers"`
	MaxSeqLen  int    `json:"max_seq_len" yaml:"max_seq_len"`
	PinMemory  bool   `json:"pin_memory" yaml:"pin_memory"`
}

type LoggerConfig struct {
	HParamsFile string `json:"hparams_file" yaml:"hparams_file"`
	TrackerURL  string `json:"tracker_url" yaml:"tracker_url"`
	Project     string `json:"project" yaml:"project"`
}

type DistributedConfig struct {
	NumNodes int            `json:"num_nodes" yaml:"num_nodes"`
	Peers    map[int]string `json:"peers" yaml:"peers"`
}

// Config is the full run configuration.
type Config struct {
	Name              string                            `json:"name" yaml:"name"`
	Seed              int64                             `json:"seed" yaml:"seed"`
	ExperimentMode    bool                              `json:"experiment_mode" yaml:"experiment_mode"`
	IgnoreWarnings    bool                              `json:"ignore_warnings" yaml:"ignore_warnings"`
	TestAfterTraining bool                              `json:"test_after_training" yaml:"test_after_training"`
	Trainer           TrainerConfig                     `json:"trainer" yaml:"trainer"`
	Model             ModelConfig                       `json:"model" yaml:"model"`
	Datamodule        DatamoduleConfig                  `json:"datamodule" yaml:"datamodule"`
	Callbacks         map[string]map[string]interface{} `json:"callbacks" yaml:"callbacks"`
	Logger            LoggerConfig                      `json:"logger" yaml:"logger"`
	Distributed       DistributedConfig                 `json:"distributed" yaml:"distributed"`
}

// LoadConfig reads a YAML run config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, pkgerrors.Wrap(err, "cannot read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, pkgerrors.Wrap(err, "cannot parse config")
	}
	return cfg, nil
}

// Derive validates cfg and returns the adjusted copy the run should use. It
// never mutates its input:
//   - experiment mode without a name is ErrMissingExperimentName;
//   - fast-dev-run forces a debugger friendly configuration (no GPUs, no
//     dataloader workers, no pinned memory).
func Derive(cfg Config) (Config, error) {
	if cfg.ExperimentMode && cfg.Name == "" {
		return cfg, ErrMissingExperimentName
	}
	out := cfg
	if cfg.Trainer.FastDevRun {
		out.Trainer.GPUs = 0
		out.Datamodule.NumWorkers = 0
		out.Datamodule.PinMemory = false
	}
	return out, nil
}
