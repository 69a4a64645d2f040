// Command authsessiond is the composition root for the session engine:
// it loads configuration, wires the codec and the two stores into the
// orchestrator, starts the background purger, and blocks until
// terminated. Modelled on the flag + conf.MustLoad startup convention
// used throughout this codebase's other *.rpc main packages (e.g.
// services/gateway/services/articles/rpc/articles.go), trimmed down since
// this binary exposes no gRPC/HTTP surface of its own.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/authflow/sessionengine/internal/config"
	"github.com/authflow/sessionengine/internal/orchestrator"
	"github.com/authflow/sessionengine/internal/postgres"
	"github.com/authflow/sessionengine/internal/redisindex"
	"github.com/authflow/sessionengine/pkg/authsession"
	"github.com/authflow/sessionengine/third_party/cache"
	"github.com/authflow/sessionengine/third_party/database"
)

var configFile = flag.String("f", "etc/authsessiond.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewPostgresConnection(c.Database)
	logx.Must(err)
	defer db.Close()

	redisClient, err := cache.NewRedisConnection(c.Redis)
	logx.Must(err)
	defer redisClient.Close()

	orch, purger := build(ctx, c, db, redisClient)
	purger.Start(ctx)
	defer purger.Stop()

	_ = orch // wired for use by whatever external collaborator front-ends this engine

	logx.Infof("authsessiond %s started, purge interval %s", c.Service.Name, c.Purge.Interval())
	<-ctx.Done()
	logx.Info("authsessiond shutting down")
}

func build(ctx context.Context, c config.Config, db *sqlx.DB, redisClient *cache.RedisClient) (*orchestrator.Orchestrator, *orchestrator.Purger) {
	codec, err := authsession.NewCodec(authsession.CodecConfig{
		SigningKey:   c.Codec.SigningKey,
		Algorithm:    c.Codec.Algorithm,
		AccessTTLMs:  c.Codec.AccessTTLMs,
		RefreshTTLMs: c.Codec.RefreshTTLMs,
		ClockSkew:    c.Codec.ClockSkew(),
		Issuer:       c.Codec.Issuer,
	})
	logx.Must(err)

	durable := postgres.New(db)
	fast := redisindex.New(redisClient.GetClient())

	orch := orchestrator.New(ctx, codec, durable, fast)
	purger := orchestrator.NewPurger(ctx, durable, c.Purge.Interval())
	return orch, purger
}
