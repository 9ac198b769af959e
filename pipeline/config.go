package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/rscalzo/sami/fluxcal/psf"
	"github.com/rscalzo/sami/fluxcal/transfer"
	"github.com/rscalzo/sami/obs/standards"
)

/* Example config file:

model: circular_atm
maxseparation: 30
smoothwidth: 10
catalogues:
  - /data/standards/ESOstandards.dat
  - /data/standards/Bessellstandards.dat
*/

// Config mirrors the optional YAML configuration file. Field names map to
// lower-cased YAML keys.
type Config struct {
	Model         string
	MaxSeparation float64
	SmoothWidth   float64
	Catalogues    []string
}

// DefaultConfig returns the configuration used when no file is given: the
// circular PSF model with the standard matching radius and smoothing width.
func DefaultConfig() Config {
	return Config{
		Model:         psf.VariantCircular.String(),
		MaxSeparation: standards.DefaultMaxSeparation,
		SmoothWidth:   transfer.DefaultWidth,
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults, so a
// file only needs the keys it wants to change.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("pipeline: %w", err)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("pipeline: parsing %s: %w", path, err)
	}
	return c, nil
}

// Options resolves the configuration into derivation options.
func (c Config) Options() (Options, error) {
	model, err := psf.ParseVariant(c.Model)
	if err != nil {
		return Options{}, fmt.Errorf("pipeline: %w", err)
	}
	return Options{
		Model:         model,
		Catalogues:    c.Catalogues,
		MaxSeparation: c.MaxSeparation,
		SmoothWidth:   c.SmoothWidth,
	}, nil
}
