//go:build integration

package subject_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"campaign-server/internal/database"
	"campaign-server/internal/domain"
	"campaign-server/internal/subject"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type SubjectSuite struct {
	suite.Suite
	ctx            context.Context
	logger         *zap.Logger
	pgContainer    *postgres.PostgresContainer
	redisContainer *tcredis.RedisContainer
	pool           *pgxpool.Pool
	rdb            *redis.Client
}

func TestSubjectSuite(t *testing.T) {
	suite.Run(t, new(SubjectSuite))
}

func (s *SubjectSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("campaign_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err)

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)
	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.NewMigrator(s.pool, s.logger).Up())

	s.redisContainer, err = tcredis.Run(s.ctx, "redis:7-alpine")
	require.NoError(s.T(), err)
	endpoint, err := s.redisContainer.Endpoint(s.ctx, "")
	require.NoError(s.T(), err)

	s.rdb, err = database.ConnectRedis(s.ctx, database.RedisConfig{Addr: endpoint, MaxRetries: 3, RetryDelay: time.Second}, s.logger)
	require.NoError(s.T(), err)
}

func (s *SubjectSuite) TearDownSuite() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisContainer != nil {
		_ = s.redisContainer.Terminate(s.ctx)
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *SubjectSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE events`)
	s.Require().NoError(err)
	s.Require().NoError(s.rdb.FlushDB(s.ctx).Err())
}

func (s *SubjectSuite) TestPgEventRepository() {
	starts := time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC)
	_, err := s.pool.Exec(s.ctx,
		`INSERT INTO events (id, name, description, venue, starts_at) VALUES ($1, $2, $3, $4, $5)`,
		"evt-1", "Jazz Night", "Open-air concert", "City Park", starts)
	s.Require().NoError(err)

	repo := subject.NewPgEventRepository(s.pool, s.logger)

	subj, err := repo.Resolve(s.ctx, "evt-1")
	s.Require().NoError(err)
	s.Equal(domain.Subject{
		Ref: "evt-1", Name: "Jazz Night", Description: "Open-air concert",
		Venue: "City Park", StartsAt: "2026-07-01T19:00:00Z",
	}, subj)

	_, err = repo.Resolve(s.ctx, "missing")
	s.True(subject.IsNotFound(err))
}

type countingResolver struct {
	calls int
	err   error
}

func (c *countingResolver) Resolve(_ context.Context, ref string) (domain.Subject, error) {
	c.calls++
	if c.err != nil {
		return domain.Subject{}, c.err
	}
	return domain.Subject{Ref: ref, Name: "Cached Show"}, nil
}

func (s *SubjectSuite) TestCachedResolver_HitsRedisOnSecondCall() {
	next := &countingResolver{}
	cached := subject.NewCachedResolver(next, s.rdb, time.Minute, s.logger)

	first, err := cached.Resolve(s.ctx, "evt-9")
	s.Require().NoError(err)
	second, err := cached.Resolve(s.ctx, "evt-9")
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(1, next.calls)

	ttl, err := s.rdb.TTL(s.ctx, "campaign:subject:evt-9").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *SubjectSuite) TestCachedResolver_DoesNotCacheFailures() {
	next := &countingResolver{err: errors.New("boom")}
	cached := subject.NewCachedResolver(next, s.rdb, time.Minute, s.logger)

	_, err := cached.Resolve(s.ctx, "evt-x")
	s.Error(err)
	_, err = cached.Resolve(s.ctx, "evt-x")
	s.Error(err)
	s.Equal(2, next.calls)
}
