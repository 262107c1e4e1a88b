package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names used to look up transaction settings
const (
	OpCountQuery   = "count_query"
	OpCaptureScan  = "capture_scan"
	OpRestoreWrite = "restore_write"
	OpHealthCheck  = "health_check"
)

// TransactionConfig defines timeout and metadata for transactions.
// Metadata is recorded by Neo4j in query.log, which makes backup and
// restore traffic easy to pick out.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns recommended configs per operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		OpCountQuery: {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{
				"operation": OpCountQuery,
				"type":      "read",
			},
		},

		// Full scans of nodes or relationships during a backup
		OpCaptureScan: {
			Timeout: 10 * time.Minute,
			Metadata: map[string]any{
				"operation": OpCaptureScan,
				"type":      "read",
			},
		},

		// Delete + bulk load during a restore runs in one transaction
		OpRestoreWrite: {
			Timeout: 15 * time.Minute,
			Metadata: map[string]any{
				"operation": OpRestoreWrite,
				"type":      "write",
			},
		},

		OpHealthCheck: {
			Timeout: 5 * time.Second,
			Metadata: map[string]any{
				"operation": OpHealthCheck,
				"type":      "read",
			},
		},
	}
}

// AsNeo4jConfig converts to Neo4j transaction config functions.
// Use with ExecuteRead/ExecuteWrite.
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}

	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}

	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}

	return configs
}

// GetConfigForOperation retrieves the appropriate transaction config.
// Returns a 60s default if the operation is unknown.
func GetConfigForOperation(operation string) TransactionConfig {
	configs := DefaultTransactionConfigs()
	if config, ok := configs[operation]; ok {
		return config
	}

	return TransactionConfig{
		Timeout: 60 * time.Second,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}
