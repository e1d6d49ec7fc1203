// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package escrow

import (
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// tomlSettings ensures TOML keys use the same names as the FileConfig
// struct fields, rather than naoina/toml's default field-name
// normalization.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// MaxFeeBPS is the protocol-wide ceiling on any fee policy's output,
// static or dynamic.
const MaxFeeBPS = 1000

const (
	defaultDisputeWindow   = 48 * time.Hour
	defaultProtocolFeeBPS  = 250
	defaultBaseBPS         = 250
	defaultDepthPremiumBPS = 25
)

// Clock is the engine's only source of time. Production hosts wire
// SystemClock; tests inject a FakeClock so timing-gated transitions are
// deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time via time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Config holds the scalars and collaborator bindings an Engine needs.
// Treasury is immutable for the lifetime of an Engine: it is set once at
// construction and never exposed through a setter.
type Config struct {
	DisputeWindow  time.Duration
	ProtocolFeeBPS uint16
	Treasury       Principal
	Clock          Clock
	UseGlobalLock  bool
}

// FileConfig is the on-disk shape decoded by LoadConfigTOML, used by the
// cmd/shakectl operator shim. It is intentionally a thin, separate type
// from Config: Treasury/Clock are wiring concerns a config file cannot
// express (Clock never; Treasury is an address string here).
type FileConfig struct {
	DisputeWindowSeconds int64
	ProtocolFeeBPS       uint16
	TreasuryHex          string
	BaseBPS              uint16
	DepthPremiumBPS      uint16
	UseGlobalLock        bool
}

func defaultConfig() Config {
	return Config{
		DisputeWindow:  defaultDisputeWindow,
		ProtocolFeeBPS: defaultProtocolFeeBPS,
		Clock:          SystemClock{},
	}
}

// Option customizes a default Config before the engine is built.
type Option func(*Config)

func WithDisputeWindow(d time.Duration) Option {
	return func(c *Config) { c.DisputeWindow = d }
}

func WithProtocolFeeBPS(bps uint16) Option {
	return func(c *Config) {
		if bps > MaxFeeBPS {
			bps = MaxFeeBPS
		}
		c.ProtocolFeeBPS = bps
	}
}

func WithTreasury(p Principal) Option {
	return func(c *Config) { c.Treasury = p }
}

func WithClock(clk Clock) Option {
	return func(c *Config) { c.Clock = clk }
}

// WithGlobalLock switches the engine from the default per-root-tree
// locking to a single mutex guarding every tree. Both are linearizable;
// the per-tree variant just allows unrelated trees to commit
// concurrently.
func WithGlobalLock() Option {
	return func(c *Config) { c.UseGlobalLock = true }
}

// LoadConfigTOML decodes a FileConfig from path using
// github.com/naoina/toml.
func LoadConfigTOML(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, errors.Wrapf(err, "opening config file %q", path)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(&fc); err != nil {
		return fc, errors.Wrapf(err, "decoding config file %q", path)
	}
	return fc, nil
}

// FeePolicy builds a DepthAdjustedFeePolicy from the file's BaseBPS and
// DepthPremiumBPS, falling back to the package defaults for whichever
// field is left at its zero value.
func (fc FileConfig) FeePolicy() *DepthAdjustedFeePolicy {
	base := fc.BaseBPS
	if base == 0 {
		base = defaultBaseBPS
	}
	premium := fc.DepthPremiumBPS
	if premium == 0 {
		premium = defaultDepthPremiumBPS
	}
	return NewDepthAdjustedFeePolicy(base, premium)
}

// ToOptions converts a decoded FileConfig into engine Options. Treasury
// must be a 20-byte hex string (with or without "0x"); Clock is always
// SystemClock since a file cannot express an injected clock.
func (fc FileConfig) ToOptions() ([]Option, error) {
	treasury, err := principalFromHex(fc.TreasuryHex)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithDisputeWindow(time.Duration(fc.DisputeWindowSeconds) * time.Second),
		WithProtocolFeeBPS(fc.ProtocolFeeBPS),
		WithTreasury(treasury),
	}
	if fc.UseGlobalLock {
		opts = append(opts, WithGlobalLock())
	}
	return opts, nil
}
