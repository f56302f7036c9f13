package strategy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is everything the runner needs for one symbol.
type Settings struct {
	Symbol    string
	Timeframe string
	OrderSize float64
	Params    Params
}

func DefaultSettings() Settings {
	return Settings{
		Symbol:    "BTC/USDT",
		Timeframe: "1m",
		OrderSize: 0.001,
		Params:    DefaultParams(),
	}
}

func (s Settings) Validate() error {
	if s.Symbol == "" {
		return errors.New("strategy symbol is empty")
	}
	if !(s.OrderSize > 0) {
		return fmt.Errorf("order size %v must be positive", s.OrderSize)
	}
	return s.Params.Validate()
}

// fileConfig mirrors the YAML overlay. Absent keys leave the base value alone.
type fileConfig struct {
	Symbol    *string  `yaml:"symbol"`
	Timeframe *string  `yaml:"timeframe"`
	OrderSize *float64 `yaml:"order_size"`
	SMA       struct {
		Short  *int `yaml:"short"`
		Long   *int `yaml:"long"`
		Buffer *int `yaml:"buffer"`
	} `yaml:"sma"`
}

// LoadOverlay applies the YAML file at path on top of base. A missing file
// returns base unchanged.
func LoadOverlay(path string, base Settings) (Settings, bool, error) {
	if path == "" {
		return base, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, false, nil
	}
	if err != nil {
		return base, false, err
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, false, fmt.Errorf("parse %s: %w", path, err)
	}

	out := base
	if file.Symbol != nil {
		out.Symbol = *file.Symbol
	}
	if file.Timeframe != nil {
		out.Timeframe = *file.Timeframe
	}
	if file.OrderSize != nil {
		out.OrderSize = *file.OrderSize
	}
	if file.SMA.Short != nil {
		out.Params.Short = *file.SMA.Short
	}
	if file.SMA.Long != nil {
		out.Params.Long = *file.SMA.Long
	}
	if file.SMA.Buffer != nil {
		out.Params.Buffer = *file.SMA.Buffer
	}
	if err := out.Validate(); err != nil {
		return base, false, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}
