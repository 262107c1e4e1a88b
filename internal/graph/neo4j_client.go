package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rohankatakam/kgvault/internal/errors"
)

// Client wraps the Neo4j driver with error handling and query helpers.
// It is the only type in this module that talks to the driver directly.
type Client struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// ClientOptions tunes the driver connection pool
type ClientOptions struct {
	MaxConnectionPoolSize int
	ConnectTimeout        time.Duration
}

// DefaultClientOptions returns pool settings for a single operator process
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxConnectionPoolSize: 10,
		ConnectTimeout:        5 * time.Second,
	}
}

// NewClient connects to Neo4j and verifies connectivity (fail fast).
// Connection failures are returned as ConnectionError and never retried here.
func NewClient(ctx context.Context, uri, user, password, database string, opts ClientOptions) (*Client, error) {
	if uri == "" || user == "" || password == "" {
		return nil, errors.ConfigErrorf("neo4j credentials missing: uri=%s, user=%s", uri, user)
	}
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(user, password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = opts.MaxConnectionPoolSize
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.SocketConnectTimeout = opts.ConnectTimeout
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.ConnectionError(err, "failed to create neo4j driver")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, GetConfigForOperation(OpHealthCheck).Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, errors.ConnectionError(err, fmt.Sprintf("failed to connect to neo4j at %s", uri))
	}

	logger := slog.Default().With("component", "neo4j")
	logger.Info("neo4j client connected",
		"uri", uri,
		"user", user,
		"database", database,
		"max_pool_size", opts.MaxConnectionPoolSize)

	return &Client{
		driver:   driver,
		logger:   logger,
		database: database,
	}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	c.logger.Info("neo4j client closed")
	return nil
}

// RunQuery executes a read query and returns its rows as maps.
// Routing: read replicas in cluster deployments.
func (c *Client) RunQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	queryCtx, cancel := withOperationTimeout(ctx, OpCountQuery)
	defer cancel()

	result, err := neo4j.ExecuteQuery(queryCtx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}

	c.logger.Debug("query executed", "record_count", len(records))
	return records, nil
}

// Driver returns the underlying Neo4j driver
func (c *Client) Driver() neo4j.DriverWithContext {
	return c.driver
}

// Database returns the configured database name
func (c *Client) Database() string {
	return c.database
}

func summaryFromCounters(counters neo4j.Counters) WriteSummary {
	return WriteSummary{
		NodesCreated:         counters.NodesCreated(),
		NodesDeleted:         counters.NodesDeleted(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		RelationshipsDeleted: counters.RelationshipsDeleted(),
		PropertiesSet:        counters.PropertiesSet(),
	}
}

func withOperationTimeout(ctx context.Context, operation string) (context.Context, context.CancelFunc) {
	txConfig := GetConfigForOperation(operation)
	if txConfig.Timeout > 0 {
		return context.WithTimeout(ctx, txConfig.Timeout)
	}
	return ctx, func() {}
}
