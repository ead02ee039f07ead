package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toxrank/ml"
)

type stubModel struct{}

func (stubModel) HeadParams() []ml.Param {
	return []ml.Param{{Name: "fc.weight", Numel: 10, Trainable: true}}
}
func (stubModel) EmbeddingParams() []ml.Param {
	return []ml.Param{{Name: "word_embeddings.weight", Numel: 100, Trainable: false}}
}
func (stubModel) EncoderLayerParams(i int) []ml.Param {
	return []ml.Param{{Name: "attention.query.weight", Numel: 25, Trainable: true}}
}
func (stubModel) NumEncoderLayers() int { return 1 }

func TestHyperparameters(t *testing.T) {
	cfg := Config{
		Seed:    42,
		Trainer: TrainerConfig{MaxEpochs: 3},
		Callbacks: map[string]map[string]interface{}{
			"model_checkpoint": {"monitor": "val/acc"},
		},
	}
	hparams := Hyperparameters(cfg, stubModel{})

	assert.Equal(t, cfg.Trainer, hparams["trainer"])
	assert.Equal(t, cfg.Model, hparams["model"])
	assert.Equal(t, cfg.Datamodule, hparams["datamodule"])
	assert.Equal(t, int64(42), hparams["seed"])
	assert.Equal(t, cfg.Callbacks, hparams["callbacks"])

	assert.Equal(t, int64(135), hparams["model/params/total"])
	assert.Equal(t, int64(35), hparams["model/params/trainable"])
	assert.Equal(t, int64(100), hparams["model/params/non_trainable"])
}

func TestHyperparametersOmitsAbsentSections(t *testing.T) {
	hparams := Hyperparameters(Config{}, stubModel{})
	_, hasSeed := hparams["seed"]
	_, hasCallbacks := hparams["callbacks"]
	assert.False(t, hasSeed)
	assert.False(t, hasCallbacks)
}

type failingLogger struct{}

func (failingLogger) Name() string { return "failing" }
func (failingLogger) LogHyperparams(map[string]interface{}) error {
	return assert.AnError
}

func TestLogHyperparametersForwardsToAll(t *testing.T) {
	err := LogHyperparameters(Config{}, stubModel{}, []ExperimentLogger{failingLogger{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
}
