package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xlab/treeprint"
	"gopkg.in/yaml.v3"
)

// configTreeFile is rewritten on every PrintConfig call.
const configTreeFile = "config_tree.log"

// printFields selects which config sections are rendered, and in what order.
var printFields = []string{
	"trainer",
	"model",
	"datamodule",
	"callbacks",
	"logger",
	"test_after_training",
	"seed",
	"name",
}

// PrintConfig renders the whitelisted config sections as a tree with YAML
// bodies, writes it to w and mirrors the same text into config_tree.log in
// the working directory (truncated each call). Callers gate this on rank
// zero.
func PrintConfig(cfg Config, w io.Writer) error {
	tree := treeprint.NewWithRoot("CONFIG")
	for _, field := range printFields {
		body, err := renderSection(cfg, field)
		if err != nil {
			return err
		}
		branch := tree.AddBranch(field)
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			branch.AddNode(line)
		}
	}

	rendered := tree.String()
	if _, err := io.WriteString(w, rendered); err != nil {
		return errors.Wrap(err, "cannot print config")
	}

	f, err := os.Create(configTreeFile)
	if err != nil {
		return errors.Wrap(err, "cannot write "+configTreeFile)
	}
	defer f.Close()
	_, err = io.WriteString(f, rendered)
	return errors.Wrap(err, "cannot write "+configTreeFile)
}

func renderSection(cfg Config, field string) (string, error) {
	var section interface{}
	switch field {
	case "trainer":
		section = cfg.Trainer
	case "model":
		section = cfg.Model
	case "datamodule":
		section = cfg.Datamodule
	case "callbacks":
		section = cfg.Callbacks
	case "logger":
		section = cfg.Logger
	case "test_after_training":
		return fmt.Sprintf("%v", cfg.TestAfterTraining), nil
	case "seed":
		return fmt.Sprintf("%v", cfg.Seed), nil
	case "name":
		return cfg.Name, nil
	default:
		return "", errors.Errorf("unknown config section %q", field)
	}
	out, err := yaml.Marshal(section)
	if err != nil {
		return "", errors.Wrapf(err, "cannot render section %q", field)
	}
	return string(out), nil
}
