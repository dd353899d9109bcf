package cmd

import (
	"math/big"
	"os"

	"github.com/mindhaven/mpcnet/party"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Config is the session description shared by all parties, loaded from
// a YAML file. The private key is deliberately not part of it.
type Config struct {
	NumParties       int          `yaml:"numParties"`
	Threshold        int          `yaml:"threshold"`
	Modulus          string       `yaml:"modulus"`
	CompareBitLength int          `yaml:"compareBitLength"`
	BatchSize        int          `yaml:"batchSize"`
	StatusAddr       string       `yaml:"statusAddr"`
	Roster           []party.Info `yaml:"roster"`
}

// LoadConfig reads and parses the session file.
func LoadConfig(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read session file: %v", err)
	}

	var conf Config
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return Config{}, xerrors.Errorf("failed to parse session file: %v", err)
	}
	if len(conf.Roster) == 0 {
		return Config{}, xerrors.New("session file has an empty roster")
	}
	if conf.NumParties == 0 {
		conf.NumParties = len(conf.Roster)
	}
	if conf.Threshold == 0 {
		conf.Threshold = conf.NumParties - 1
	}
	return conf, nil
}

// FieldModulus parses the decimal modulus string, nil if unset so the
// party picks its default.
func (c Config) FieldModulus() (*big.Int, error) {
	if c.Modulus == "" {
		return nil, nil
	}
	p, ok := new(big.Int).SetString(c.Modulus, 10)
	if !ok {
		return nil, xerrors.Errorf("bad modulus %q", c.Modulus)
	}
	return p, nil
}
