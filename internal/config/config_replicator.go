package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Adapter kinds.
const (
	AdapterPostgREST = "postgrest"
	AdapterPostgres  = "postgres"
	AdapterMemory    = "memory"
)

// Defaults applied by [NewReplicatorConfig] to unset fields.
const (
	DefaultPrimaryKey     = "id"
	DefaultModifiedField  = "_modified"
	DefaultDeletedField   = "_deleted"
	DefaultBatchSize      = 100
	DefaultRetryTime      = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultJWTDuration    = time.Hour
	DefaultNotifyChannel  = "table_changes"
)

// ReplicatorReplication is the resolved replication session configuration.
type ReplicatorReplication struct {
	Identifier        string
	Collection        string
	Table             string
	PrimaryKey        string
	ModifiedField     string
	DeletedField      string
	KeepModifiedField bool
	BatchSize         int
	Live              bool
	Realtime          bool
	Pull              bool
	Push              bool
	RetryTime         time.Duration
	ResyncInterval    time.Duration
}

// ReplicatorAdapter is the resolved remote backend configuration.
type ReplicatorAdapter struct {
	Kind            string
	RESTURL         string
	APIKey          string
	JWTSecret       string
	JWTRole         string
	JWTDuration     time.Duration
	RequestTimeout  time.Duration
	DSN             string
	NotifyChannel   string
	InstallTriggers bool
}

// ReplicatorDB contains local database connection settings.
type ReplicatorDB struct {
	DSN string
}

// ReplicatorStorage groups local storage settings.
type ReplicatorStorage struct {
	DB ReplicatorDB
}

// ReplicatorServer holds the status API settings.
type ReplicatorServer struct {
	HTTPAddress    string
	RequestTimeout time.Duration
}

// ReplicatorConfig is the runtime configuration of the replicator binary,
// assembled from [StructuredConfig] with defaults applied.
type ReplicatorConfig struct {
	Replication ReplicatorReplication
	Adapter     ReplicatorAdapter
	Storage     ReplicatorStorage
	Server      ReplicatorServer
}

// GetReplicatorConfig loads the merged structured configuration, applies
// defaults, and validates the result.
func GetReplicatorConfig() (*ReplicatorConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	return NewReplicatorConfig(cfg)
}

// NewReplicatorConfig resolves cfg into a [ReplicatorConfig].
func NewReplicatorConfig(cfg *StructuredConfig) (*ReplicatorConfig, error) {
	r := cfg.Replication
	a := cfg.Adapter

	table := firstNonEmpty(r.Table, r.Collection)
	kind := strings.ToLower(firstNonEmpty(a.Kind, AdapterPostgREST))

	out := &ReplicatorConfig{
		Replication: ReplicatorReplication{
			Identifier:        r.Identifier,
			Collection:        firstNonEmpty(r.Collection, table),
			Table:             table,
			PrimaryKey:        firstNonEmpty(r.PrimaryKey, DefaultPrimaryKey),
			ModifiedField:     firstNonEmpty(r.ModifiedField, DefaultModifiedField),
			DeletedField:      firstNonEmpty(r.DeletedField, DefaultDeletedField),
			KeepModifiedField: boolOr(r.KeepModifiedField, false),
			BatchSize:         r.BatchSize,
			Live:              boolOr(r.Live, true),
			Realtime:          boolOr(r.Realtime, true),
			Pull:              boolOr(r.Pull, true),
			Push:              boolOr(r.Push, true),
			RetryTime:         durationOr(r.RetryTime, DefaultRetryTime),
			ResyncInterval:    r.ResyncInterval,
		},
		Adapter: ReplicatorAdapter{
			Kind:            kind,
			RESTURL:         strings.TrimSpace(a.RESTURL),
			APIKey:          a.APIKey,
			JWTSecret:       a.JWTSecret,
			JWTRole:         a.JWTRole,
			JWTDuration:     durationOr(a.JWTDuration, DefaultJWTDuration),
			RequestTimeout:  durationOr(a.RequestTimeout, DefaultRequestTimeout),
			DSN:             a.DSN,
			NotifyChannel:   firstNonEmpty(a.NotifyChannel, DefaultNotifyChannel),
			InstallTriggers: boolOr(a.InstallTriggers, false),
		},
		Storage: ReplicatorStorage{
			DB: ReplicatorDB{DSN: cfg.Storage.DB.DSN},
		},
		Server: ReplicatorServer{
			HTTPAddress:    cfg.Server.HTTPAddress,
			RequestTimeout: durationOr(cfg.Server.RequestTimeout, DefaultRequestTimeout),
		},
	}

	if r.BatchSize == 0 {
		out.Replication.BatchSize = DefaultBatchSize
	}

	if out.Replication.Identifier == "" {
		out.Replication.Identifier = defaultIdentifier(out)
	}

	return out, out.validate()
}

// defaultIdentifier derives a stable identifier from the remote location and
// table, so that restarts with the same settings resume the same checkpoint.
func defaultIdentifier(cfg *ReplicatorConfig) string {
	remote := cfg.Adapter.RESTURL
	if cfg.Adapter.Kind == AdapterPostgres {
		remote = cfg.Adapter.DSN
	}
	name := strings.Join([]string{cfg.Adapter.Kind, remote, cfg.Replication.Table}, "|")

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
