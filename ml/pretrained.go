package ml

// dropoutFreeConfig returns cfg with both dropout probabilities zeroed, as
// used when loading pretrained weights for inference-stable fine-tuning.
func dropoutFreeConfig(cfg EncoderConfig) EncoderConfig {
	cfg.HiddenDropout = 0
	cfg.AttentionDropout = 0
	return cfg
}

// LoadPretrained builds the model from cfg and loads the pretrained state
// dict at path. With removeDropout set, the config's dropout probabilities
// are zeroed before the weights are loaded.
func LoadPretrained(path string, cfg EncoderConfig, removeDropout bool) (*EncoderModel, error) {
	if removeDropout {
		cfg = dropoutFreeConfig(cfg)
	}
	m := NewEncoderModel(cfg)
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadPretrainedFrozen loads the pretrained model and, with freeze set,
// marks every parameter non-trainable.
func LoadPretrainedFrozen(path string, cfg EncoderConfig, freeze bool) (*EncoderModel, error) {
	m, err := LoadPretrained(path, cfg, false)
	if err != nil {
		return nil, err
	}
	if freeze {
		m.Freeze()
	}
	return m, nil
}
