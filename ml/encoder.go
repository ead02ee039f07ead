package ml

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	torch "github.com/wangkuiyi/gotorch"
)

// EncoderConfig describes the backbone and head of the ranking model. The
// dropout probabilities only matter to the (external) forward pass, but they
// are part of the pretrained checkpoint contract: the no-dropout loader
// zeroes them before weights are loaded.
type EncoderConfig struct {
	VocabSize        int64   `json:"vocab_size" yaml:"vocab_size"`
	HiddenSize       int64   `json:"hidden_size" yaml:"hidden_size"`
	IntermediateSize int64   `json:"intermediate_size" yaml:"intermediate_size"`
	NumHiddenLayers  int     `json:"num_hidden_layers" yaml:"num_hidden_layers"`
	MaxPosition      int64   `json:"max_position_embeddings" yaml:"max_position_embeddings"`
	HiddenDropout    float64 `json:"hidden_dropout_prob" yaml:"hidden_dropout_prob"`
	AttentionDropout float64 `json:"attention_probs_dropout_prob" yaml:"attention_probs_dropout_prob"`
	NumLabels        int64   `json:"num_labels" yaml:"num_labels"`
}

// EncoderModel is the parameter tree of a transformer encoder with a linear
// scoring head: an embeddings block, NumHiddenLayers encoder layers and an
// "fc" head. Forward computation is owned by the surrounding pipeline; this
// side only needs the named parameters for grouping, counting and
// checkpointing.
type EncoderModel struct {
	Config EncoderConfig

	embeddings []Param
	layers     [][]Param
	head       []Param
}

// NewEncoderModel allocates the parameter tree with zeroed tensors. Weights
// come from a pretrained state dict via Load.
func NewEncoderModel(cfg EncoderConfig) *EncoderModel {
	m := &EncoderModel{Config: cfg}
	hid := cfg.HiddenSize
	inter := cfg.IntermediateSize

	m.embeddings = []Param{
		newParam("word_embeddings.weight", cfg.VocabSize, hid),
		newParam("position_embeddings.weight", cfg.MaxPosition, hid),
		newParam("LayerNorm.weight", hid),
		newParam("LayerNorm.bias", hid),
	}

	m.layers = make([][]Param, cfg.NumHiddenLayers)
	for i := range m.layers {
		m.layers[i] = []Param{
			newParam("attention.query.weight", hid, hid),
			newParam("attention.query.bias", hid),
			newParam("attention.key.weight", hid, hid),
			newParam("attention.key.bias", hid),
			newParam("attention.value.weight", hid, hid),
			newParam("attention.value.bias", hid),
			newParam("attention.output.dense.weight", hid, hid),
			newParam("attention.output.dense.bias", hid),
			newParam("attention.output.LayerNorm.weight", hid),
			newParam("attention.output.LayerNorm.bias", hid),
			newParam("intermediate.dense.weight", inter, hid),
			newParam("intermediate.dense.bias", inter),
			newParam("output.dense.weight", hid, inter),
			newParam("output.dense.bias", hid),
			newParam("output.LayerNorm.weight", hid),
			newParam("output.LayerNorm.bias", hid),
		}
	}

	m.head = []Param{
		newParam("fc.weight", cfg.NumLabels, hid),
		newParam("fc.bias", cfg.NumLabels),
	}
	return m
}

func newParam(name string, shape ...int64) Param {
	numel := int64(1)
	for _, d := range shape {
		numel *= d
	}
	return Param{
		Name:      name,
		Value:     torch.Full(shape, 0, true),
		Numel:     numel,
		Trainable: true,
	}
}

func (m *EncoderModel) HeadParams() []Param      { return m.head }
func (m *EncoderModel) EmbeddingParams() []Param { return m.embeddings }
func (m *EncoderModel) NumEncoderLayers() int    { return len(m.layers) }

func (m *EncoderModel) EncoderLayerParams(i int) []Param {
	return m.layers[i]
}

// Freeze marks every parameter non-trainable. Groups built afterwards still
// include the parameters; the optimizer skips them.
func (m *EncoderModel) Freeze() {
	freeze := func(params []Param) {
		for i := range params {
			params[i].Trainable = false
		}
	}
	freeze(m.embeddings)
	for i := range m.layers {
		freeze(m.layers[i])
	}
	freeze(m.head)
}

// StateDict flattens the tree into checkpoint keys: embeddings.*,
// encoder.layer.<i>.* and the head's own fc.* names.
func (m *EncoderModel) StateDict() map[string]torch.Tensor {
	states := make(map[string]torch.Tensor)
	for _, p := range m.embeddings {
		states[stateKey("embeddings", -1, p.Name)] = p.Value
	}
	for i, layer := range m.layers {
		for _, p := range layer {
			states[stateKey("encoder.layer", i, p.Name)] = p.Value
		}
	}
	for _, p := range m.head {
		states[p.Name] = p.Value
	}
	return states
}

// SetStateDict copies pretrained weights into the allocated tensors. Every
// parameter of the model must be present in states.
func (m *EncoderModel) SetStateDict(states map[string]torch.Tensor) error {
	for key, value := range m.StateDict() {
		pretrained, ok := states[key]
		if !ok {
			return errors.Errorf("state dict is missing %q", key)
		}
		value.SetData(pretrained)
	}
	return nil
}

func stateKey(section string, layer int, name string) string {
	if layer >= 0 {
		return fmt.Sprintf("%s.%d.%s", section, layer, name)
	}
	return section + "." + name
}

// Save writes the state dict as a gob file.
func (m *EncoderModel) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create model file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m.StateDict()); err != nil {
		return errors.Wrap(err, "cannot encode state dict")
	}
	return nil
}

// Load reads a gob state dict written by Save and copies it into the model.
func (m *EncoderModel) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "cannot open model file")
	}
	defer f.Close()
	states := make(map[string]torch.Tensor)
	if err := gob.NewDecoder(f).Decode(&states); err != nil {
		return errors.Wrap(err, "cannot decode state dict")
	}
	return m.SetStateDict(states)
}
