package toolgraph

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

//go:generate mockgen -source=driver.go -destination=../../mocks/mocktoolgraph/toolgraph_mock.gen.go -package mocktoolgraph

// Driver executes read queries against the graph
type Driver interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// Neo4j implements Driver over a Neo4j database
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j returns the driver for the configured database.
// The connection is established lazily on the first query.
func NewNeo4j(cfg config.Neo4j) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j URI is not configured")
	}

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create neo4j driver for %s", cfg.URI)
	}

	return &Neo4j{
		driver:   driver,
		database: cfg.Database,
	}, nil
}

// Execute runs a read query in a managed transaction and returns the records
func (n *Neo4j) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: n.database,
	})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		list, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		records := make([]Record, 0, len(list))
		for _, rec := range list {
			r := make(Record, len(rec.Keys))
			for i, key := range rec.Keys {
				r[key] = rec.Values[i]
			}
			records = append(records, r)
		}
		return records, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "graph query failed")
	}
	return res.([]Record), nil
}

// Ping verifies the connectivity
func (n *Neo4j) Ping(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}

// Close releases the driver
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
