package rds

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/rds"
)

//go:generate mockgen -source=api.go -destination=../../mocks/mockrds/rds_mock.gen.go -package mockrds

// API is the subset of RDS client used by the tools
type API interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error)
}
