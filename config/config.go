// Package config loads the scanner's TOML configuration file, the same
// tomlSettings/LineError pattern cmd/ranger/config.go uses for its own
// node.Config, generalized from one chain-specific struct to the sectioned
// [Scanner]/[Database]/[Kafka]/[Metrics] shape this module needs (section
// and key names match the Go field names exactly).
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/klaytn/bridgescan/primitives"
)

// tomlSettings keeps TOML keys identical to the Go struct field names,
// the same normalization cmd/ranger/config.go applies.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// ScannerConfig carries the ScannerFeed constants as config-overridable
// defaults: each chain integration may need a different
// Confirmations/WindowLength/TenMinutes, and operators may want to retune
// dust thresholds without a rebuild.
type ScannerConfig struct {
	Network       string
	Confirmations uint64
	WindowLength  uint64
	TenMinutes    uint64
	StartBlock    primitives.BlockNumber
	// Dust maps a Coin (as its uint32 value) to the minimum Amount worth
	// crediting.
	Dust map[uint32]primitives.Amount
}

type DatabaseConfig struct {
	Backend string // "badger" or "leveldb"
	Dir     string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type MetricsConfig struct {
	Enabled   bool
	Addr      string // Prometheus /metrics listen address
	RedisAddr string
	RedisDB   int
}

type Config struct {
	Scanner  ScannerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Metrics  MetricsConfig
}

// Default returns a Config with conservative single-chain defaults,
// overridden by whatever a loaded TOML file sets explicitly.
func Default() Config {
	return Config{
		Scanner: ScannerConfig{
			Confirmations: 6,
			WindowLength:  6,
			TenMinutes:    40,
			Dust:          map[uint32]primitives.Amount{},
		},
		Database: DatabaseConfig{Backend: "badger", Dir: "scanner-data"},
	}
}

// Load reads and decodes file into cfg, annotating TOML parse errors with
// the file name the way cmd/ranger/config.go's loadConfig does.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}
