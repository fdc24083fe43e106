// Package rds provides tools for Amazon RDS instances, clusters and snapshots.
package rds

import (
	"context"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const (
	ToolDescribeInstances = "rds_describe_instances"
	ToolDescribeClusters  = "rds_describe_clusters"
	ToolDescribeSnapshots = "rds_describe_snapshots"
)

const (
	defaultMaxResults = 50
	maxPages          = 10
)

// Provider implements the RDS tools
type Provider struct {
	api API
}

// New returns the provider
func New(api API) *Provider {
	return &Provider{api: api}
}

// NewFromConfig returns the provider with the SDK client
func NewFromConfig(cfg aws.Config) *Provider {
	return New(rds.NewFromConfig(cfg))
}

// Tools returns the RDS tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolDescribeInstances,
		"Describes RDS DB instances with engine, class, status, endpoint and storage.",
		p.DescribeInstances))
	b.Add(tools.NewBase(ToolDescribeClusters,
		"Describes Aurora and Multi-AZ DB clusters with endpoints and members.",
		p.DescribeClusters))
	b.Add(tools.NewBase(ToolDescribeSnapshots,
		"Describes RDS DB snapshots, optionally for one DB instance and snapshot type.",
		p.DescribeSnapshots))
	return b.Tools()
}

// DescribeInstancesRequest is the input of rds_describe_instances
type DescribeInstancesRequest struct {
	Identifier string `json:"identifier,omitempty" jsonschema:"title=Identifier,description=Optional DB instance identifier."`
	Engine     string `json:"engine,omitempty" jsonschema:"title=Engine,description=Optional engine filter like postgres or aurora-mysql."`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum instances to return; defaults to 50." validate:"gte=0,lte=500"`
}

// Instance is the summary of DB instance
type Instance struct {
	Identifier       string     `json:"identifier"`
	Class            string     `json:"class"`
	Engine           string     `json:"engine"`
	EngineVersion    string     `json:"engine_version,omitempty"`
	Status           string     `json:"status"`
	Endpoint         string     `json:"endpoint,omitempty"`
	Port             int32      `json:"port,omitempty"`
	AllocatedStorage int32      `json:"allocated_storage_gb"`
	StorageType      string     `json:"storage_type,omitempty"`
	MultiAZ          bool       `json:"multi_az"`
	Public           bool       `json:"publicly_accessible"`
	AvailabilityZone string     `json:"availability_zone,omitempty"`
	Cluster          string     `json:"cluster,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// DescribeInstancesResult is the output of rds_describe_instances
type DescribeInstancesResult struct {
	Instances []Instance `json:"instances"`
	Count     int        `json:"count"`
	Truncated bool       `json:"truncated"`
}

// DescribeInstances returns the DB instances
func (p *Provider) DescribeInstances(ctx context.Context, req *DescribeInstancesRequest) (*DescribeInstancesResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, defaultMaxResults)
	input := &rds.DescribeDBInstancesInput{
		MaxRecords: pageSize(maxResults),
	}
	if req.Identifier != "" {
		input.DBInstanceIdentifier = aws.String(req.Identifier)
	}
	if req.Engine != "" {
		input.Filters = []rdstypes.Filter{{Name: aws.String("engine"), Values: []string{req.Engine}}}
	}

	res := &DescribeInstancesResult{Instances: []Instance{}}
	for page := 0; page < maxPages; page++ {
		out, err := p.api.DescribeDBInstances(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to describe DB instances")
		}
		for _, db := range out.DBInstances {
			if len(res.Instances) >= maxResults {
				res.Truncated = true
				break
			}
			res.Instances = append(res.Instances, instance(db))
		}
		if res.Truncated || out.Marker == nil {
			break
		}
		input.Marker = out.Marker
	}
	res.Count = len(res.Instances)
	return res, nil
}

func instance(db rdstypes.DBInstance) Instance {
	r := Instance{
		Identifier:       aws.ToString(db.DBInstanceIdentifier),
		Class:            aws.ToString(db.DBInstanceClass),
		Engine:           aws.ToString(db.Engine),
		EngineVersion:    aws.ToString(db.EngineVersion),
		Status:           aws.ToString(db.DBInstanceStatus),
		AllocatedStorage: aws.ToInt32(db.AllocatedStorage),
		StorageType:      aws.ToString(db.StorageType),
		MultiAZ:          aws.ToBool(db.MultiAZ),
		Public:           aws.ToBool(db.PubliclyAccessible),
		AvailabilityZone: aws.ToString(db.AvailabilityZone),
		Cluster:          aws.ToString(db.DBClusterIdentifier),
		CreatedAt:        db.InstanceCreateTime,
	}
	if db.Endpoint != nil {
		r.Endpoint = aws.ToString(db.Endpoint.Address)
		r.Port = aws.ToInt32(db.Endpoint.Port)
	}
	return r
}

// DescribeClustersRequest is the input of rds_describe_clusters
type DescribeClustersRequest struct {
	Identifier string `json:"identifier,omitempty" jsonschema:"title=Identifier,description=Optional DB cluster identifier."`
	Engine     string `json:"engine,omitempty" jsonschema:"title=Engine,description=Optional engine filter like aurora-postgresql."`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum clusters to return; defaults to 50." validate:"gte=0,lte=500"`
}

// ClusterMember is the instance of the cluster
type ClusterMember struct {
	Identifier string `json:"identifier"`
	Writer     bool   `json:"writer"`
}

// Cluster is the summary of DB cluster
type Cluster struct {
	Identifier       string          `json:"identifier"`
	Engine           string          `json:"engine"`
	EngineVersion    string          `json:"engine_version,omitempty"`
	Status           string          `json:"status"`
	Endpoint         string          `json:"endpoint,omitempty"`
	ReaderEndpoint   string          `json:"reader_endpoint,omitempty"`
	Port             int32           `json:"port,omitempty"`
	MultiAZ          bool            `json:"multi_az"`
	Encrypted        bool            `json:"encrypted"`
	AllocatedStorage int32           `json:"allocated_storage_gb,omitempty"`
	Members          []ClusterMember `json:"members"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
}

// DescribeClustersResult is the output of rds_describe_clusters
type DescribeClustersResult struct {
	Clusters  []Cluster `json:"clusters"`
	Count     int       `json:"count"`
	Truncated bool      `json:"truncated"`
}

// DescribeClusters returns the DB clusters
func (p *Provider) DescribeClusters(ctx context.Context, req *DescribeClustersRequest) (*DescribeClustersResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, defaultMaxResults)
	input := &rds.DescribeDBClustersInput{
		MaxRecords: pageSize(maxResults),
	}
	if req.Identifier != "" {
		input.DBClusterIdentifier = aws.String(req.Identifier)
	}
	if req.Engine != "" {
		input.Filters = []rdstypes.Filter{{Name: aws.String("engine"), Values: []string{req.Engine}}}
	}

	res := &DescribeClustersResult{Clusters: []Cluster{}}
	for page := 0; page < maxPages; page++ {
		out, err := p.api.DescribeDBClusters(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to describe DB clusters")
		}
		for _, c := range out.DBClusters {
			if len(res.Clusters) >= maxResults {
				res.Truncated = true
				break
			}
			cl := Cluster{
				Identifier:       aws.ToString(c.DBClusterIdentifier),
				Engine:           aws.ToString(c.Engine),
				EngineVersion:    aws.ToString(c.EngineVersion),
				Status:           aws.ToString(c.Status),
				Endpoint:         aws.ToString(c.Endpoint),
				ReaderEndpoint:   aws.ToString(c.ReaderEndpoint),
				Port:             aws.ToInt32(c.Port),
				MultiAZ:          aws.ToBool(c.MultiAZ),
				Encrypted:        aws.ToBool(c.StorageEncrypted),
				AllocatedStorage: aws.ToInt32(c.AllocatedStorage),
				Members:          []ClusterMember{},
				CreatedAt:        c.ClusterCreateTime,
			}
			for _, m := range c.DBClusterMembers {
				cl.Members = append(cl.Members, ClusterMember{
					Identifier: aws.ToString(m.DBInstanceIdentifier),
					Writer:     aws.ToBool(m.IsClusterWriter),
				})
			}
			res.Clusters = append(res.Clusters, cl)
		}
		if res.Truncated || out.Marker == nil {
			break
		}
		input.Marker = out.Marker
	}
	res.Count = len(res.Clusters)
	return res, nil
}

// DescribeSnapshotsRequest is the input of rds_describe_snapshots
type DescribeSnapshotsRequest struct {
	InstanceIdentifier string `json:"instance_identifier,omitempty" jsonschema:"title=Instance Identifier,description=Optional DB instance identifier."`
	SnapshotType       string `json:"snapshot_type,omitempty" jsonschema:"title=Snapshot Type,description=Optional type: automated or manual or shared or public or awsbackup." validate:"omitempty,oneof=automated manual shared public awsbackup"`
	MaxResults         int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum snapshots to return; defaults to 50." validate:"gte=0,lte=500"`
}

// Snapshot is the summary of DB snapshot
type Snapshot struct {
	Identifier         string     `json:"identifier"`
	InstanceIdentifier string     `json:"instance_identifier"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	Engine             string     `json:"engine"`
	AllocatedStorage   int32      `json:"allocated_storage_gb"`
	Encrypted          bool       `json:"encrypted"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
}

// DescribeSnapshotsResult is the output of rds_describe_snapshots
type DescribeSnapshotsResult struct {
	Snapshots []Snapshot `json:"snapshots"`
	Count     int        `json:"count"`
	Truncated bool       `json:"truncated"`
}

// DescribeSnapshots returns the DB snapshots, newest first
func (p *Provider) DescribeSnapshots(ctx context.Context, req *DescribeSnapshotsRequest) (*DescribeSnapshotsResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, defaultMaxResults)
	input := &rds.DescribeDBSnapshotsInput{
		MaxRecords: pageSize(maxResults),
	}
	if req.InstanceIdentifier != "" {
		input.DBInstanceIdentifier = aws.String(req.InstanceIdentifier)
	}
	if req.SnapshotType != "" {
		input.SnapshotType = aws.String(req.SnapshotType)
	}

	res := &DescribeSnapshotsResult{Snapshots: []Snapshot{}}
	for page := 0; page < maxPages; page++ {
		out, err := p.api.DescribeDBSnapshots(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to describe DB snapshots")
		}
		for _, s := range out.DBSnapshots {
			if len(res.Snapshots) >= maxResults {
				res.Truncated = true
				break
			}
			res.Snapshots = append(res.Snapshots, Snapshot{
				Identifier:         aws.ToString(s.DBSnapshotIdentifier),
				InstanceIdentifier: aws.ToString(s.DBInstanceIdentifier),
				Type:               aws.ToString(s.SnapshotType),
				Status:             aws.ToString(s.Status),
				Engine:             aws.ToString(s.Engine),
				AllocatedStorage:   aws.ToInt32(s.AllocatedStorage),
				Encrypted:          aws.ToBool(s.Encrypted),
				CreatedAt:          s.SnapshotCreateTime,
			})
		}
		if res.Truncated || out.Marker == nil {
			break
		}
		input.Marker = out.Marker
	}
	sortSnapshots(res.Snapshots)
	res.Count = len(res.Snapshots)
	return res, nil
}

func sortSnapshots(list []Snapshot) {
	slices.SortStableFunc(list, func(a, b Snapshot) int {
		return aws.ToTime(b.CreatedAt).Compare(aws.ToTime(a.CreatedAt))
	})
}

// pageSize returns MaxRecords in the 20-100 range accepted by RDS
func pageSize(maxResults int) *int32 {
	return aws.Int32(int32(min(max(maxResults, 20), 100)))
}
