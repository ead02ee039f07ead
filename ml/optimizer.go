package ml

import (
	"errors"
	"strings"

	torch "github.com/wangkuiyi/gotorch"
)

// Parameters whose name contains one of these substrings are exempt from
// weight decay, following the usual transformer fine-tuning convention.
var noDecay = []string{"bias", "LayerNorm.weight"}

var (
	ErrInvalidDecayFactor = errors.New("layer-wise lr decay factor must be in (0, 1]")
	ErrInvalidModelShape  = errors.New("model has no embeddings block or no encoder layers")
)

// ParamGroup is a set of parameters sharing one learning rate and one weight
// decay coefficient, as consumed by the optimizer. A group with no
// parameters is valid and inert.
type ParamGroup struct {
	Params      []Param
	LR          float64
	WeightDecay float64
}

// LayerwiseDecayGroups builds optimizer parameter groups with geometrically
// decaying learning rates. The head keeps the base rate; then layers are
// visited from the one nearest the output down to the embeddings, the rate
// shrinking by factor at each step, so no layer gets the undecayed base
// rate. Each layer contributes two groups: one at weightDecay and one, for
// bias and LayerNorm scale parameters, at zero decay.
//
// For a model with L encoder layers the result is 2*(L+1)+1 groups. The
// builder reads parameter names and trainability flags only; tensors are
// never touched.
func LayerwiseDecayGroups(m ModelParams, lr, weightDecay, factor float64) ([]ParamGroup, error) {
	if factor <= 0 || factor > 1 {
		return nil, ErrInvalidDecayFactor
	}
	numLayers := m.NumEncoderLayers()
	if numLayers == 0 || len(m.EmbeddingParams()) == 0 {
		return nil, ErrInvalidModelShape
	}

	groups := make([]ParamGroup, 0, 2*(numLayers+1)+1)
	groups = append(groups, ParamGroup{Params: m.HeadParams(), LR: lr, WeightDecay: weightDecay})

	// embeddings first, then encoder layers in order, then reversed so the
	// layer closest to the output is visited first and keeps the largest
	// rate.
	layers := make([][]Param, 0, numLayers+1)
	layers = append(layers, m.EmbeddingParams())
	for i := 0; i < numLayers; i++ {
		layers = append(layers, m.EncoderLayerParams(i))
	}
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}

	groupLR := lr
	for _, layer := range layers {
		groupLR *= factor
		decay, exempt := splitNoDecay(layer)
		groups = append(groups,
			ParamGroup{Params: decay, LR: groupLR, WeightDecay: weightDecay},
			ParamGroup{Params: exempt, LR: groupLR, WeightDecay: 0.0},
		)
	}
	return groups, nil
}

func splitNoDecay(params []Param) (decay, exempt []Param) {
	for _, p := range params {
		if isNoDecay(p.Name) {
			exempt = append(exempt, p)
		} else {
			decay = append(decay, p)
		}
	}
	return decay, exempt
}

func isNoDecay(name string) bool {
	for _, nd := range noDecay {
		if strings.Contains(name, nd) {
			return true
		}
	}
	return false
}

// GroupedSGD applies plain SGD with decoupled weight decay, honoring the
// per-group learning rates. gotorch's built-in SGD keeps a single global
// rate, so the step is done by hand the same way the training nodes apply
// incoming gradients: w -= lr*grad, then w -= lr*wd*w.
type GroupedSGD struct {
	groups []ParamGroup
}

func NewGroupedSGD(groups []ParamGroup) *GroupedSGD {
	return &GroupedSGD{groups: groups}
}

func (o *GroupedSGD) Groups() []ParamGroup {
	return o.groups
}

// Step updates every trainable parameter in place from its accumulated
// gradient.
func (o *GroupedSGD) Step() {
	for _, g := range o.groups {
		for _, p := range g.Params {
			if !p.Trainable || p.Value.T == nil {
				continue
			}
			grad := p.Value.Grad()
			if grad.T == nil {
				continue
			}
			w := torch.Sub(p.Value, grad, float32(g.LR))
			if g.WeightDecay != 0 {
				w = torch.Sub(w, p.Value, float32(g.LR*g.WeightDecay))
			}
			p.Value.SetData(w)
		}
	}
}

// ZeroGrad clears accumulated gradients ahead of the next backward pass.
func (o *GroupedSGD) ZeroGrad() {
	for _, g := range o.groups {
		for _, p := range g.Params {
			if !p.Trainable || p.Value.T == nil {
				continue
			}
			grad := p.Value.Grad()
			if grad.T == nil {
				continue
			}
			grad.SetData(torch.Full(grad.Shape(), 0, true))
		}
	}
}
