package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/lox/redenvelope/internal/game"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "redenvelope.hcl"

// Config is the complete file configuration
type Config struct {
	Game   *GameSettings   `hcl:"game,block"`
	Rules  []RuleConfig    `hcl:"rule,block"`
	Server *ServerSettings `hcl:"server,block"`
}

// GameSettings configures new sessions
type GameSettings struct {
	Digits       int    `hcl:"digits,optional"`
	MaxPrice     int    `hcl:"max_price,optional"` // 0 = unlimited
	SpinInterval string `hcl:"spin_interval,optional"`
	DefaultRules *bool  `hcl:"default_rules,optional"`
}

// RuleConfig is one correlation rule. Keys of When are positions.
type RuleConfig struct {
	Name     string         `hcl:"name,label"`
	Digits   int            `hcl:"digits"`
	Position int            `hcl:"position"`
	When     map[string]int `hcl:"when"`
	Allow    []int          `hcl:"allow"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, evalContext(), &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// evalContext exposes named constants to config expressions, e.g.
// max_price = unlimited or position = pos.tens.
func evalContext() *hcl.EvalContext {
	positions := make(map[string]cty.Value, game.MaxDigits)
	for p := 0; p < game.MaxDigits; p++ {
		positions[strings.ReplaceAll(game.PositionName(p), "-", "_")] = cty.NumberIntVal(int64(p))
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"unlimited":  cty.NumberIntVal(0),
			"min_digits": cty.NumberIntVal(game.MinDigits),
			"max_digits": cty.NumberIntVal(game.MaxDigits),
			"pos":        cty.ObjectVal(positions),
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Game.Digits == 0 {
		c.Game.Digits = 4
	}
	if c.Game.SpinInterval == "" {
		c.Game.SpinInterval = game.DefaultSpinInterval.String()
	}
	if c.Game.DefaultRules == nil {
		on := true
		c.Game.DefaultRules = &on
	}

	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.GameConfig(); err != nil {
		return err
	}
	if _, err := c.SpinInterval(); err != nil {
		return err
	}
	rules, err := c.RuleSet()
	if err != nil {
		return err
	}
	if err := rules.Validate(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Server.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}
	return nil
}

// GameConfig returns the validated game setup.
func (c *Config) GameConfig() (game.Config, error) {
	return game.NewConfig(c.Game.Digits, c.Game.MaxPrice)
}

// SpinInterval parses the configured re-sample period.
func (c *Config) SpinInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Game.SpinInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid spin_interval %q: %w", c.Game.SpinInterval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid spin_interval %q: must not be negative", c.Game.SpinInterval)
	}
	return d, nil
}

// RuleSet builds the correlation table: the shipped rules unless
// default_rules = false, followed by every rule block.
func (c *Config) RuleSet() (game.RuleSet, error) {
	rules := game.RuleSet{}
	if c.Game.DefaultRules == nil || *c.Game.DefaultRules {
		rules = append(rules, game.DefaultRules...)
	}
	for _, rc := range c.Rules {
		when := make(map[int]int, len(rc.When))
		for k, v := range rc.When {
			p, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("rule %s: trigger key %q is not a position", rc.Name, k)
			}
			when[p] = v
		}
		for _, d := range rc.Allow {
			if d < 0 || d > 9 {
				return nil, fmt.Errorf("rule %s: allow value %d is not a digit", rc.Name, d)
			}
		}
		rules = append(rules, game.Rule{
			Name:       rc.Name,
			DigitCount: rc.Digits,
			Position:   rc.Position,
			When:       when,
			Allow:      game.DigitsOf(rc.Allow...),
		})
	}
	return rules, nil
}

// Address returns host:port for the server to listen on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
