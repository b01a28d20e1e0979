// Package config loads decomposition runs from YAML (or any format viper
// reads), with MESHDECOMP_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notargets/meshdecomp/partitions"
	"github.com/notargets/meshdecomp/structured"
)

// EnvPrefix prefixes every environment override, e.g. MESHDECOMP_PROCESSORS
const EnvPrefix = "MESHDECOMP"

// Config is one decomposition run
type Config struct {
	Processors        int     `mapstructure:"processors"`
	LoadBalance       float64 `mapstructure:"load_balance"`
	LineDecomposition string  `mapstructure:"line_decomposition"`
	Verbose           bool    `mapstructure:"verbose"`

	Zones        []ZoneConfig       `mapstructure:"zones"`
	Connectivity []ConnectionConfig `mapstructure:"connectivity"`

	Faces   FacesConfig   `mapstructure:"faces"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ZoneConfig is a structured block and its cell counts
type ZoneConfig struct {
	Name    string `mapstructure:"name"`
	Extents []int  `mapstructure:"extents"`
	// Axes of this zone that may not be split, added to the global setting
	LineDecomposition string `mapstructure:"line_decomposition"`
}

// ConnectionConfig is an interface declared from the owner's side. Ranges
// are 1-based node indices; an empty transform means identity.
type ConnectionConfig struct {
	Name          string `mapstructure:"name"`
	Owner         string `mapstructure:"owner"`
	Donor         string `mapstructure:"donor"`
	Transform     []int  `mapstructure:"transform"`
	OwnerRangeBeg []int  `mapstructure:"owner_range_beg"`
	OwnerRangeEnd []int  `mapstructure:"owner_range_end"`
	DonorRangeBeg []int  `mapstructure:"donor_range_beg"`
	DonorRangeEnd []int  `mapstructure:"donor_range_end"`
}

// FacesConfig controls face generation for unstructured meshes
type FacesConfig struct {
	// Blocks processed concurrently; 0 means one per CPU
	Workers int `mapstructure:"workers"`
}

// LoggingConfig selects the zap logger
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Default returns the configuration used for keys a file leaves out
func Default() Config {
	return Config{
		Processors:  1,
		LoadBalance: 0.1,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("processors", d.Processors)
	v.SetDefault("load_balance", d.LoadBalance)
	v.SetDefault("line_decomposition", d.LineDecomposition)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("faces.workers", d.Faces.Workers)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
}

// New returns a viper instance with defaults and environment overrides set
// up; cmd binds its flags onto it before calling Load
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if not empty) into v and decodes and validates the result
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", structured.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the shape of the configuration; semantic checks on zones
// and connectivity happen during decomposition
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %v", err))
	}
	if c.Faces.Workers < 0 {
		errs = append(errs, fmt.Errorf("faces.workers must not be negative, got %d", c.Faces.Workers))
	}
	for i, z := range c.Zones {
		if len(z.Extents) != 3 {
			errs = append(errs, fmt.Errorf("zones[%d] (%s): extents need 3 values, got %d", i, z.Name, len(z.Extents)))
		}
	}
	for i, cc := range c.Connectivity {
		fields := []struct {
			name string
			vals []int
		}{
			{"owner_range_beg", cc.OwnerRangeBeg},
			{"owner_range_end", cc.OwnerRangeEnd},
			{"donor_range_beg", cc.DonorRangeBeg},
			{"donor_range_end", cc.DonorRangeEnd},
		}
		if len(cc.Transform) != 0 {
			fields = append(fields, struct {
				name string
				vals []int
			}{"transform", cc.Transform})
		}
		for _, f := range fields {
			if len(f.vals) != 3 {
				errs = append(errs, fmt.Errorf("connectivity[%d] (%s): %s needs 3 values, got %d", i, cc.Name, f.name, len(f.vals)))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", structured.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func ijk(vals []int) structured.IJK {
	var v structured.IJK
	copy(v[:], vals)
	return v
}

// Input converts the configuration into a decomposition request
func (c *Config) Input() *partitions.Input {
	in := &partitions.Input{
		Processors:        c.Processors,
		LoadBalance:       c.LoadBalance,
		LineDecomposition: c.LineDecomposition,
	}
	for _, z := range c.Zones {
		e := ijk(z.Extents)
		in.Zones = append(in.Zones, partitions.ZoneSpec{Name: z.Name, NI: e[0], NJ: e[1], NK: e[2]})
		if z.LineDecomposition != "" {
			if in.ZoneLineDecomposition == nil {
				in.ZoneLineDecomposition = make(map[string]string)
			}
			in.ZoneLineDecomposition[z.Name] = z.LineDecomposition
		}
	}
	for _, cc := range c.Connectivity {
		t := structured.IdentityTransform
		if len(cc.Transform) != 0 {
			t = ijk(cc.Transform)
		}
		in.Connectivity = append(in.Connectivity, partitions.ConnectionSpec{
			Name:          cc.Name,
			Owner:         cc.Owner,
			Donor:         cc.Donor,
			Transform:     t,
			OwnerRangeBeg: ijk(cc.OwnerRangeBeg),
			OwnerRangeEnd: ijk(cc.OwnerRangeEnd),
			DonorRangeBeg: ijk(cc.DonorRangeBeg),
			DonorRangeEnd: ijk(cc.DonorRangeEnd),
		})
	}
	return in
}

// Logger builds the zap logger the configuration asks for
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
