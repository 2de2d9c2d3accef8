package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StructuredFileConfig mirrors [StructuredConfig] for JSON and YAML files.
type StructuredFileConfig struct {
	Replication struct {
		Identifier        string   `json:"identifier" yaml:"identifier"`
		Collection        string   `json:"collection" yaml:"collection"`
		Table             string   `json:"table" yaml:"table"`
		PrimaryKey        string   `json:"primary_key" yaml:"primary_key"`
		ModifiedField     string   `json:"modified_field" yaml:"modified_field"`
		DeletedField      string   `json:"deleted_field" yaml:"deleted_field"`
		KeepModifiedField *bool    `json:"keep_modified_field" yaml:"keep_modified_field"`
		BatchSize         int      `json:"batch_size" yaml:"batch_size"`
		Live              *bool    `json:"live" yaml:"live"`
		Realtime          *bool    `json:"realtime" yaml:"realtime"`
		Pull              *bool    `json:"pull" yaml:"pull"`
		Push              *bool    `json:"push" yaml:"push"`
		RetryTime         Duration `json:"retry_time" yaml:"retry_time"`
		ResyncInterval    Duration `json:"resync_interval" yaml:"resync_interval"`
	} `json:"replication,omitempty" yaml:"replication,omitempty"`

	Adapter struct {
		Kind            string   `json:"kind" yaml:"kind"`
		RESTURL         string   `json:"rest_url" yaml:"rest_url"`
		APIKey          string   `json:"api_key" yaml:"api_key"`
		JWTSecret       string   `json:"jwt_secret" yaml:"jwt_secret"`
		JWTRole         string   `json:"jwt_role" yaml:"jwt_role"`
		JWTDuration     Duration `json:"jwt_duration" yaml:"jwt_duration"`
		RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout"`
		DSN             string   `json:"dsn" yaml:"dsn"`
		NotifyChannel   string   `json:"notify_channel" yaml:"notify_channel"`
		InstallTriggers *bool    `json:"install_triggers" yaml:"install_triggers"`
	} `json:"adapter,omitempty" yaml:"adapter,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn" yaml:"dsn"`
		} `json:"db,omitempty" yaml:"db,omitempty"`
	} `json:"storage,omitempty" yaml:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address" yaml:"http_address"`
		RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
	} `json:"server,omitempty" yaml:"server,omitempty"`
}

// parseFile reads a configuration file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func parseFile(path string) (*StructuredConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading a config file: %w", err)
	}
	defer file.Close()

	var fileCfg StructuredFileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&fileCfg); err != nil {
			return nil, fmt.Errorf("error decoding yaml configs: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(&fileCfg); err != nil {
			return nil, fmt.Errorf("error decoding json configs: %w", err)
		}
	}

	r := fileCfg.Replication
	a := fileCfg.Adapter
	cfg := &StructuredConfig{
		Replication: Replication{
			Identifier:        r.Identifier,
			Collection:        r.Collection,
			Table:             r.Table,
			PrimaryKey:        r.PrimaryKey,
			ModifiedField:     r.ModifiedField,
			DeletedField:      r.DeletedField,
			KeepModifiedField: r.KeepModifiedField,
			BatchSize:         r.BatchSize,
			Live:              r.Live,
			Realtime:          r.Realtime,
			Pull:              r.Pull,
			Push:              r.Push,
			RetryTime:         time.Duration(r.RetryTime),
			ResyncInterval:    time.Duration(r.ResyncInterval),
		},
		Adapter: Adapter{
			Kind:            a.Kind,
			RESTURL:         a.RESTURL,
			APIKey:          a.APIKey,
			JWTSecret:       a.JWTSecret,
			JWTRole:         a.JWTRole,
			JWTDuration:     time.Duration(a.JWTDuration),
			RequestTimeout:  time.Duration(a.RequestTimeout),
			DSN:             a.DSN,
			NotifyChannel:   a.NotifyChannel,
			InstallTriggers: a.InstallTriggers,
		},
		Storage: Storage{
			DB: DB{DSN: fileCfg.Storage.DB.DSN},
		},
		Server: Server{
			HTTPAddress:    fileCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(fileCfg.Server.RequestTimeout),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports unmarshaling
// from strings like "1h", "30s" in both JSON and YAML.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if n, err := time.ParseDuration(raw); err == nil {
		*d = Duration(n)
		return nil
	}

	var nanos int64
	if err := node.Decode(&nanos); err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(time.Duration(nanos))
	return nil
}
