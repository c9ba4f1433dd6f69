package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/hadi77ir/go-docpager/internal/logger"
	"github.com/hadi77ir/go-docpager/loader"
	"github.com/hadi77ir/go-docpager/pagination"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
	"github.com/hadi77ir/go-docpager/stores/mongodb"
	"github.com/hadi77ir/go-docpager/stores/restricted"
)

// NewFindCommand returns the command reading one page of a collection.
func NewFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Read one page of a collection",
		Long:  "Read one page of a collection and print its edges and page info as JSON. Nodes are printed as relaxed extended JSON.",
		Args:  cobra.NoArgs,
		RunE:  runFind,
	}
	bindFindFlags(cmd)
	return cmd
}

func runFind(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	req, err := cfg.Request()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := connect(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn("failed to disconnect", zap.Error(err))
		}
	}()

	var s store.Store = mongodb.New(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
	if len(cfg.AllowedFields) > 0 {
		s = restricted.New(s, cfg.AllowedFields, query.DefaultOptions())
	}
	res, err := findPage(ctx, s, cfg.Mongo.Collection, req, cfg.Count, log)
	if err != nil {
		log.Error("find failed", zap.Error(err), zap.Int("status", query.StatusCode(err)))
		return err
	}
	return writeResult(cmd.OutOrStdout(), res)
}

// findPage reads one page. Cursor references go through a request scoped
// loader.
func findPage(ctx context.Context, s store.Store, name string, req pagination.Request, withCount bool, log logger.Logger) (*pagination.Result, error) {
	l, err := loader.New(name, s, loader.WithLogger(log))
	if err != nil {
		return nil, err
	}
	p := pagination.New(s, query.DefaultOptions(), pagination.WithLogger(log), pagination.WithLoader(l))

	conn, err := p.Find(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.Resolve(ctx, conn, withCount)
}

// connect opens a client and pings the primary with exponential backoff until
// cfg.ConnectTimeout elapses. Queries themselves are never retried.
func connect(ctx context.Context, cfg MongoConfig, log logger.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to open a connection to the datastore: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.ConnectTimeout
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err := client.Ping(pingCtx, readpref.Primary())
		if err != nil {
			log.Debug("ping failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	log.Info("connected", zap.String("database", cfg.Database), zap.Int("attempts", attempt))
	return client, nil
}

// pingTimeout bounds a single ping attempt.
const pingTimeout = 2 * time.Second

type edgeOutput struct {
	Node   json.RawMessage `json:"node"`
	Cursor string          `json:"cursor"`
}

type resultOutput struct {
	Edges      []edgeOutput        `json:"edges"`
	PageInfo   pagination.PageInfo `json:"pageInfo"`
	TotalCount *int64              `json:"totalCount,omitempty"`
}

// writeResult prints res as indented JSON with every node rendered as relaxed
// extended JSON.
func writeResult(w io.Writer, res *pagination.Result) error {
	out := resultOutput{
		Edges:      make([]edgeOutput, len(res.Edges)),
		PageInfo:   res.PageInfo,
		TotalCount: res.TotalCount,
	}
	for i, e := range res.Edges {
		node, err := bson.MarshalExtJSON(e.Node, false, false)
		if err != nil {
			return fmt.Errorf("failed to render node %d: %w", i, err)
		}
		out.Edges[i] = edgeOutput{Node: node, Cursor: e.Cursor}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
