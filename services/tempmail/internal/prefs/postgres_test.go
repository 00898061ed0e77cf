package prefs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/suite"
	"golang.org/x/text/language"

	"github.com/stoik/tempmail/services/tempmail/internal/db"
)

const (
	postgresUser     = "tempmail"
	postgresPassword = "tempmail_pwd"
	postgresDB       = "tempmail_test"
)

func TestPostgresStore(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

type PostgresStoreSuite struct {
	suite.Suite
	dockerPool       *dockertest.Pool
	postgresResource *dockertest.Resource
	pool             *pgxpool.Pool
	store            *PostgresStore
}

func (s *PostgresStoreSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping database test in short mode")
	}

	dockerPool, err := dockertest.NewPool("")
	if err != nil {
		s.T().Skipf("Could not connect to docker: %s", err)
	}
	if err := dockerPool.Client.Ping(); err != nil {
		s.T().Skipf("Docker is not available: %s", err)
	}
	dockerPool.MaxWait = time.Minute
	s.dockerPool = dockerPool

	resource, err := dockerPool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=" + postgresUser,
		"POSTGRES_PASSWORD=" + postgresPassword,
		"POSTGRES_DB=" + postgresDB,
	})
	s.Require().NoError(err)
	s.postgresResource = resource
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, resource.GetPort("5432/tcp"), postgresDB)

	ctx := context.Background()
	err = dockerPool.Retry(func() error {
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	})
	s.Require().NoError(err)

	s.store = NewPostgresStore(s.pool)
	s.Require().NoError(s.store.Migrate(ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE preferences`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.dockerPool != nil && s.postgresResource != nil {
		_ = s.dockerPool.Purge(s.postgresResource)
	}
}

func (s *PostgresStoreSuite) TestGet_NotFound() {
	_, err := s.store.Get(context.Background(), LanguageKey)

	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestSet_Upserts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, LanguageKey, "es"))
	s.Require().NoError(s.store.Set(ctx, LanguageKey, "ar"))

	v, err := s.store.Get(ctx, LanguageKey)
	s.NoError(err)
	s.Equal("ar", v)

	var rows int
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM preferences`).Scan(&rows))
	s.Equal(1, rows)
}

func (s *PostgresStoreSuite) TestMigrate_Idempotent() {
	s.NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TestLanguage_PersistsDetection() {
	ctx := context.Background()

	tag, err := Language(ctx, s.store, envOf(map[string]string{"LANG": "bn_IN.UTF-8"}))
	s.NoError(err)
	s.Equal(language.Bengali, tag)

	v, err := s.store.Get(ctx, LanguageKey)
	s.NoError(err)
	s.Equal("bn", v)
}
