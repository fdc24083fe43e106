package rds_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"
	"github.com/effective-security/nexus/mocks/mockrds"
	"github.com/effective-security/nexus/tools"
	rdstools "github.com/effective-security/nexus/tools/rds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setup(t *testing.T) (*rdstools.Provider, *mockrds.MockAPI) {
	ctrl := gomock.NewController(t)
	api := mockrds.NewMockAPI(ctrl)
	return rdstools.New(api), api
}

func TestTools(t *testing.T) {
	p, _ := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, rdstools.ToolDescribeInstances, list[0].Name())
	assert.Equal(t, rdstools.ToolDescribeClusters, list[1].Name())
	assert.Equal(t, rdstools.ToolDescribeSnapshots, list[2].Name())
}

func TestDescribeInstances(t *testing.T) {
	p, api := setup(t)

	first := api.EXPECT().DescribeDBInstances(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
			assert.Equal(t, int32(20), aws.ToInt32(in.MaxRecords))
			require.Len(t, in.Filters, 1)
			assert.Equal(t, "engine", aws.ToString(in.Filters[0].Name))
			assert.Equal(t, []string{"postgres"}, in.Filters[0].Values)
			assert.Nil(t, in.Marker)
			return &rds.DescribeDBInstancesOutput{
				DBInstances: []rdstypes.DBInstance{
					{
						DBInstanceIdentifier: aws.String("db-1"),
						DBInstanceClass:      aws.String("db.t3.micro"),
						Engine:               aws.String("postgres"),
						DBInstanceStatus:     aws.String("available"),
						AllocatedStorage:     aws.Int32(20),
						MultiAZ:              aws.Bool(true),
						Endpoint:             &rdstypes.Endpoint{Address: aws.String("db-1.rds.amazonaws.com"), Port: aws.Int32(5432)},
					},
				},
				Marker: aws.String("m1"),
			}, nil
		})
	api.EXPECT().DescribeDBInstances(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
			assert.Equal(t, "m1", aws.ToString(in.Marker))
			return &rds.DescribeDBInstancesOutput{
				DBInstances: []rdstypes.DBInstance{
					{DBInstanceIdentifier: aws.String("db-2"), Engine: aws.String("postgres")},
				},
			}, nil
		}).After(first)

	res, err := p.DescribeInstances(context.Background(), &rdstools.DescribeInstancesRequest{Engine: "postgres", MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.False(t, res.Truncated)
	db := res.Instances[0]
	assert.Equal(t, "db-1", db.Identifier)
	assert.Equal(t, "db-1.rds.amazonaws.com", db.Endpoint)
	assert.Equal(t, int32(5432), db.Port)
	assert.True(t, db.MultiAZ)
	assert.Empty(t, res.Instances[1].Endpoint)
}

func TestDescribeInstances_NotFound(t *testing.T) {
	p, api := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)

	api.EXPECT().DescribeDBInstances(gomock.Any(), gomock.Any()).
		Return(nil, &smithy.GenericAPIError{Code: "DBInstanceNotFound", Message: "DBInstance missing not found"})

	out, err := list[0].Call(context.Background(), `{"identifier":"missing"}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeNotFound, env.ErrorType)
	assert.Contains(t, env.Error, "failed to describe DB instances")
}

func TestDescribeClusters(t *testing.T) {
	p, api := setup(t)
	api.EXPECT().DescribeDBClusters(gomock.Any(), gomock.Any()).Return(&rds.DescribeDBClustersOutput{
		DBClusters: []rdstypes.DBCluster{
			{
				DBClusterIdentifier: aws.String("aurora-1"),
				Engine:              aws.String("aurora-postgresql"),
				Status:              aws.String("available"),
				Endpoint:            aws.String("aurora-1.cluster.rds.amazonaws.com"),
				ReaderEndpoint:      aws.String("aurora-1.cluster-ro.rds.amazonaws.com"),
				StorageEncrypted:    aws.Bool(true),
				DBClusterMembers: []rdstypes.DBClusterMember{
					{DBInstanceIdentifier: aws.String("aurora-1-a"), IsClusterWriter: aws.Bool(true)},
					{DBInstanceIdentifier: aws.String("aurora-1-b")},
				},
			},
			{DBClusterIdentifier: aws.String("aurora-2")},
		},
	}, nil)

	res, err := p.DescribeClusters(context.Background(), &rdstools.DescribeClustersRequest{MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.True(t, res.Truncated)
	c := res.Clusters[0]
	assert.True(t, c.Encrypted)
	assert.Equal(t, []rdstools.ClusterMember{
		{Identifier: "aurora-1-a", Writer: true},
		{Identifier: "aurora-1-b"},
	}, c.Members)
}

func TestDescribeSnapshots(t *testing.T) {
	p, api := setup(t)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	api.EXPECT().DescribeDBSnapshots(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *rds.DescribeDBSnapshotsInput, _ ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error) {
			assert.Equal(t, "db-1", aws.ToString(in.DBInstanceIdentifier))
			assert.Equal(t, "manual", aws.ToString(in.SnapshotType))
			return &rds.DescribeDBSnapshotsOutput{
				DBSnapshots: []rdstypes.DBSnapshot{
					{DBSnapshotIdentifier: aws.String("old"), SnapshotCreateTime: aws.Time(t1), SnapshotType: aws.String("manual")},
					{DBSnapshotIdentifier: aws.String("new"), SnapshotCreateTime: aws.Time(t2), SnapshotType: aws.String("manual")},
				},
			}, nil
		})

	res, err := p.DescribeSnapshots(context.Background(), &rdstools.DescribeSnapshotsRequest{InstanceIdentifier: "db-1", SnapshotType: "manual"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "new", res.Snapshots[0].Identifier)
	assert.Equal(t, "old", res.Snapshots[1].Identifier)
}

func TestDescribeSnapshots_Validation(t *testing.T) {
	p, _ := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)

	out, err := list[2].Call(context.Background(), `{"snapshot_type":"weekly"}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeValidation, env.ErrorType)
}
