// Package http implements the HTTP transport layer of the replicator.
//
// It exposes the replication status and resync endpoints together with a
// small document API over the local collection. Request tracing, access
// logging and method checks are handled here before requests reach the
// service layer.
package http
