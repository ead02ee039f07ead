package ml

import (
	torch "github.com/wangkuiyi/gotorch"
)

// Param is a single named tensor of a model. The tensor is owned by the
// model; everything downstream (grouping, the optimizer) holds it by
// reference and must not reallocate it.
type Param struct {
	Name      string
	Value     torch.Tensor
	Numel     int64
	Trainable bool
}

// ModelParams exposes a model as a task head plus a backbone made of an
// embeddings block and an ordered sequence of encoder layers. Layer 0 is the
// layer closest to the embeddings, layer NumEncoderLayers()-1 the one closest
// to the head.
type ModelParams interface {
	HeadParams() []Param
	EmbeddingParams() []Param
	EncoderLayerParams(i int) []Param
	NumEncoderLayers() int
}

// AllParams flattens the model in head, embeddings, layer order.
func AllParams(m ModelParams) []Param {
	params := append([]Param{}, m.HeadParams()...)
	params = append(params, m.EmbeddingParams()...)
	for i := 0; i < m.NumEncoderLayers(); i++ {
		params = append(params, m.EncoderLayerParams(i)...)
	}
	return params
}

// TrainableParams returns the flat trainable subset, ungrouped. This is what
// the optimizer consumes when layer-wise learning rate decay is disabled.
func TrainableParams(m ModelParams) []Param {
	var params []Param
	for _, p := range AllParams(m) {
		if p.Trainable {
			params = append(params, p)
		}
	}
	return params
}

// CountParams reports total and trainable element counts for hyperparameter
// logging.
func CountParams(m ModelParams) (total, trainable int64) {
	for _, p := range AllParams(m) {
		total += p.Numel
		if p.Trainable {
			trainable += p.Numel
		}
	}
	return total, trainable
}
