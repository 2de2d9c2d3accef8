package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// optionalBool is a boolean flag that remembers whether it was set.
type optionalBool struct {
	value *bool
}

func (o *optionalBool) String() string {
	if o == nil || o.value == nil {
		return ""
	}
	return strconv.FormatBool(*o.value)
}

func (o *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

func (o *optionalBool) IsBoolFlag() bool { return true }

// ParseFlags parses the process command line into a [StructuredConfig].
//
// Flags:
//
//	-a status API address in format [host]:[port]
//	-c/-config JSON or YAML file path with configs
//	-d local SQLite DSN
//	-id replication identifier
//	-collection local collection name
//	-table remote table name
//	-primary-key primary key column
//	-modified-field modification timestamp column
//	-deleted-field soft-delete column
//	-keep-modified keep the modification timestamp in local documents
//	-batch-size pull page size
//	-live keep replicating after the initial sync
//	-realtime subscribe to the remote change feed
//	-pull / -push enable a replication direction
//	-retry-time delay before a failed request is replayed (e.g. "5s")
//	-resync-interval periodic catch-up pull interval (e.g. "10m")
//	-adapter remote backend kind: postgrest, postgres or memory
//	-rest-url PostgREST / Supabase URL
//	-api-key PostgREST API key
//	-jwt-secret / -jwt-role / -jwt-duration role token minting
//	-remote-dsn remote PostgreSQL DSN
//	-notify-channel LISTEN/NOTIFY channel
//	-install-triggers install remote triggers at startup
//	-request-timeout remote request timeout (e.g. "30s")
func ParseFlags() (*StructuredConfig, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*StructuredConfig, error) {
	var serverAddress NetAddress
	var live, realtime, pull, push, keepModified, installTriggers optionalBool
	cfg := &StructuredConfig{}

	fs.Var(&serverAddress, "a", "Status API net address host:port")
	fs.StringVar(&cfg.JSONFilePath, "c", "", "Config file path (JSON or YAML)")
	fs.StringVar(&cfg.JSONFilePath, "config", "", "Config file path (alias)")
	fs.StringVar(&cfg.Storage.DB.DSN, "d", "", "Local SQLite DSN")

	fs.StringVar(&cfg.Replication.Identifier, "id", "", "Replication identifier")
	fs.StringVar(&cfg.Replication.Collection, "collection", "", "Local collection name")
	fs.StringVar(&cfg.Replication.Table, "table", "", "Remote table name")
	fs.StringVar(&cfg.Replication.PrimaryKey, "primary-key", "", "Primary key column")
	fs.StringVar(&cfg.Replication.ModifiedField, "modified-field", "", "Modification timestamp column")
	fs.StringVar(&cfg.Replication.DeletedField, "deleted-field", "", "Soft-delete column")
	fs.Var(&keepModified, "keep-modified", "Keep the modification timestamp in local documents")
	fs.IntVar(&cfg.Replication.BatchSize, "batch-size", 0, "Pull page size")
	fs.Var(&live, "live", "Keep replicating after the initial sync")
	fs.Var(&realtime, "realtime", "Subscribe to the remote change feed")
	fs.Var(&pull, "pull", "Enable remote to local replication")
	fs.Var(&push, "push", "Enable local to remote replication")
	fs.DurationVar(&cfg.Replication.RetryTime, "retry-time", 0, "Retry delay (e.g., 5s)")
	fs.DurationVar(&cfg.Replication.ResyncInterval, "resync-interval", 0, "Periodic resync interval (e.g., 10m)")

	fs.StringVar(&cfg.Adapter.Kind, "adapter", "", "Remote backend: postgrest, postgres or memory")
	fs.StringVar(&cfg.Adapter.RESTURL, "rest-url", "", "PostgREST URL")
	fs.StringVar(&cfg.Adapter.APIKey, "api-key", "", "PostgREST API key")
	fs.StringVar(&cfg.Adapter.JWTSecret, "jwt-secret", "", "Role token signing secret")
	fs.StringVar(&cfg.Adapter.JWTRole, "jwt-role", "", "Role token database role")
	fs.DurationVar(&cfg.Adapter.JWTDuration, "jwt-duration", 0, "Role token lifetime (e.g., 1h)")
	fs.StringVar(&cfg.Adapter.DSN, "remote-dsn", "", "Remote PostgreSQL DSN")
	fs.StringVar(&cfg.Adapter.NotifyChannel, "notify-channel", "", "LISTEN/NOTIFY channel")
	fs.Var(&installTriggers, "install-triggers", "Install remote triggers at startup")
	fs.DurationVar(&cfg.Adapter.RequestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 30s)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Server.HTTPAddress = serverAddress.String()
	cfg.Replication.Live = live.value
	cfg.Replication.Realtime = realtime.value
	cfg.Replication.Pull = pull.value
	cfg.Replication.Push = push.value
	cfg.Replication.KeepModifiedField = keepModified.value
	cfg.Adapter.InstallTriggers = installTriggers.value

	return cfg, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost"
// or empty, and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1..65535")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
