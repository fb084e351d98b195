package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/inspectwatch/config"
	"github.com/jpalmerr/inspectwatch/internal/mockapi"
)

// mockCmd runs the mock inspection portal.
var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run the mock inspection portal",
	Long: `Run a mock of the inspection portal API for local development.

The mock is seeded with a few evidence photos (evi_mock_001 to evi_mock_005)
and accepts any email with a password of at least 8 characters. Analyses
complete after --processing-time; evidence ids passed with --fail end in
error instead.

Settings are read from the mock section of --config when given. Flags that
are set explicitly take precedence.

Example:
  inspectwatch mock
  inspectwatch mock --port 3002 --sqlite mock.db --fail evi_mock_003
  inspectwatch mock -c config.yaml`,
	RunE: runMock,
}

func init() {
	rootCmd.AddCommand(mockCmd)

	f := mockCmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.Int("port", 3001, "port to listen on")
	f.String("sqlite", "", "persist evidence in this SQLite file instead of memory")
	f.Duration("processing-time", mockapi.DefaultProcessingTime, "how long an analysis stays processing")
	f.String("jwt-secret", "", "secret signing access tokens (random when empty)")
	f.StringSlice("fail", nil, "evidence ids whose analysis ends in error")
}

func runMock(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	mc, err := mockSettings(cmd)
	if err != nil {
		return err
	}

	repo, err := openRepository(mc)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seeded, err := mockapi.Seed(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to seed fixtures: %w", err)
	}
	logger.Info("fixtures seeded", "storage", mc.Storage, "inserted", seeded)

	secret := mc.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("no jwt secret configured, tokens will not survive a restart")
	}

	srv, err := mockapi.New(repo, mockapi.Config{
		Port:           mc.Port,
		ProcessingTime: mc.ProcessingTime.Duration(),
		JWTSecret:      secret,
		FailEvidences:  mc.FailEvidences,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create mock api: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logMockUsage(logger, srv.Addr())

	<-ctx.Done()
	logger.Info("shutdown complete")
	return nil
}

// mockSettings merges the config file's mock section with explicitly set flags.
func mockSettings(cmd *cobra.Command) (config.MockConfig, error) {
	f := cmd.Flags()

	mc := config.MockConfig{
		Port:           3001,
		Storage:        config.StorageMemory,
		ProcessingTime: config.Duration(mockapi.DefaultProcessingTime),
	}

	if path, _ := f.GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return mc, fmt.Errorf("failed to load config: %w", err)
		}
		mc = cfg.Mock
	}

	if f.Changed("port") {
		mc.Port, _ = f.GetInt("port")
	}
	if f.Changed("sqlite") {
		mc.Database, _ = f.GetString("sqlite")
		mc.Storage = config.StorageSQLite
	}
	if f.Changed("processing-time") {
		d, _ := f.GetDuration("processing-time")
		mc.ProcessingTime = config.Duration(d)
	}
	if f.Changed("jwt-secret") {
		mc.JWTSecret, _ = f.GetString("jwt-secret")
	}
	if f.Changed("fail") {
		mc.FailEvidences, _ = f.GetStringSlice("fail")
	}

	return mc, nil
}

func openRepository(mc config.MockConfig) (mockapi.Repository, error) {
	switch mc.Storage {
	case config.StorageSQLite:
		if mc.Database == "" {
			return nil, errors.New("sqlite storage needs a database path")
		}
		repo, err := mockapi.OpenSQLite(mc.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return repo, nil
	case "", config.StorageMemory:
		return mockapi.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", mc.Storage)
	}
}

func logMockUsage(logger *slog.Logger, addr string) {
	fixtures := mockapi.Fixtures()
	ids := make([]string, len(fixtures))
	for i, rec := range fixtures {
		ids[i] = rec.Detail.ID
	}
	_, port, _ := net.SplitHostPort(addr)
	logger.Info("mock api ready",
		"addr", addr,
		"base_url", "http://localhost:"+port+"/api",
		"evidence_ids", ids,
	)
}
