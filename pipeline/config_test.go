package pipeline_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rscalzo/sami/fluxcal/psf"
	"github.com/rscalzo/sami/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	c := pipeline.DefaultConfig()
	if c.Model != "circular" {
		t.Errorf("model = %q, want circular", c.Model)
	}
	if c.MaxSeparation != 30.0 {
		t.Errorf("maxseparation = %v, want 30", c.MaxSeparation)
	}
	if c.SmoothWidth != 10.0 {
		t.Errorf("smoothwidth = %v, want 10", c.SmoothWidth)
	}
}

func TestLoadConfig(t *testing.T) {
	contents := "model: circular_atm\n" +
		"maxseparation: 45\n" +
		"catalogues:\n" +
		"  - /data/standards/index.dat\n"
	path := filepath.Join(t.TempDir(), "fluxcal.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := pipeline.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Model != "circular_atm" {
		t.Errorf("model = %q, want circular_atm", c.Model)
	}
	if c.MaxSeparation != 45.0 {
		t.Errorf("maxseparation = %v, want 45", c.MaxSeparation)
	}
	// Keys the file leaves out keep their defaults.
	if c.SmoothWidth != 10.0 {
		t.Errorf("smoothwidth = %v, want default 10", c.SmoothWidth)
	}
	if len(c.Catalogues) != 1 || c.Catalogues[0] != "/data/standards/index.dat" {
		t.Errorf("catalogues = %v", c.Catalogues)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := pipeline.LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxcal.yml")
	if err := os.WriteFile(path, []byte("model: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := pipeline.LoadConfig(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConfigOptions(t *testing.T) {
	c := pipeline.DefaultConfig()
	c.Model = "full"
	c.Catalogues = []string{"a.dat", "b.dat"}

	o, err := c.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if o.Model != psf.VariantFull {
		t.Errorf("model = %v, want %v", o.Model, psf.VariantFull)
	}
	if o.MaxSeparation != 30.0 || o.SmoothWidth != 10.0 {
		t.Errorf("got maxsep %v width %v, want 30 10", o.MaxSeparation, o.SmoothWidth)
	}
	if len(o.Catalogues) != 2 {
		t.Errorf("catalogues = %v", o.Catalogues)
	}
}

func TestConfigOptionsBadModel(t *testing.T) {
	c := pipeline.DefaultConfig()
	c.Model = "elliptical"
	_, err := c.Options()
	if !errors.Is(err, psf.ErrUnknownVariant) {
		t.Fatalf("got %v, want ErrUnknownVariant", err)
	}
}
