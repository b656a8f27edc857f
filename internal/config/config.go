package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/myuser/txkv/internal/storage"
	"github.com/myuser/txkv/internal/txn"
)

// Nested commit modes accepted in [txn] nested_commit.
const (
	NestedCommitParent = "parent"
	NestedCommitRoot   = "root"
)

// Config is the node configuration, decoded from TOML.
type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Txn    TxnConfig    `toml:"txn"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`

	// Sessions unused for this long are closed and their open
	// transactions discarded.
	SessionIdleTimeout Duration `toml:"session_idle_timeout"`
	ReapInterval       Duration `toml:"reap_interval"`
}

type StoreConfig struct {
	BTreeDegree int `toml:"btree_degree"`
}

type TxnConfig struct {
	NestedCommit string `toml:"nested_commit"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:               ":7070",
			SessionIdleTimeout: Duration{10 * time.Minute},
			ReapInterval:       Duration{time.Minute},
		},
		Store: StoreConfig{
			BTreeDegree: storage.DefaultDegree,
		},
		Txn: TxnConfig{
			NestedCommit: NestedCommitParent,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig decodes the TOML file at path on top of the defaults.
// Keys the file leaves out keep their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.SessionIdleTimeout.Duration <= 0 {
		return errors.New("server.session_idle_timeout must be positive")
	}
	if c.Server.ReapInterval.Duration <= 0 {
		return errors.New("server.reap_interval must be positive")
	}
	if c.Store.BTreeDegree < 2 {
		return errors.Errorf("store.btree_degree must be at least 2, got %d", c.Store.BTreeDegree)
	}
	if _, err := c.Txn.CommitTarget(); err != nil {
		return err
	}
	return nil
}

// CommitTarget maps nested_commit onto the transaction manager setting.
func (t TxnConfig) CommitTarget() (txn.CommitTarget, error) {
	switch t.NestedCommit {
	case NestedCommitParent, "":
		return txn.CommitToParent, nil
	case NestedCommitRoot:
		return txn.CommitToRoot, nil
	default:
		return 0, errors.Errorf("txn.nested_commit must be %q or %q, got %q",
			NestedCommitParent, NestedCommitRoot, t.NestedCommit)
	}
}

// Duration is a time.Duration written as a string such as "90s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Wrapf(err, "parse duration %q", text)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
