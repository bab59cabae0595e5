package config

import (
	"context"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/internal/ratelimiter"
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/metrics"
	"github.com/marmos91/dfsgate/pkg/store/dfs"
	"github.com/marmos91/dfsgate/pkg/store/emulator"
	"github.com/marmos91/dfsgate/pkg/store/rest"
	"github.com/marmos91/dfsgate/pkg/stream"
)

// ClientFactory is the store layer built from configuration.
//
// Close releases the backing store (a no-op for the dfs client, which holds
// no resources beyond pooled connections).
type ClientFactory interface {
	filesystem.ClientFactory
	io.Closer
}

// CreateClientFactory creates the client factory for the configured store.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map.
//
// Supported types:
//   - "dfs": HTTP client for the DFS REST endpoint (pkg/store/dfs)
//   - "memory": in-memory emulator (pkg/store/emulator)
//   - "badger": badger-backed emulator persisted on disk (pkg/store/emulator)
func CreateClientFactory(ctx context.Context, cfg *Config) (ClientFactory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Store.Type {
	case "dfs":
		return createDFSClientFactory(cfg)
	case "memory":
		return createMemoryClientFactory(cfg.Store.Memory)
	case "badger":
		return createBadgerClientFactory(cfg.Store.Badger)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Store.Type)
	}
}

// ServiceConfig returns the filesystem service tunables.
func ServiceConfig(cfg *Config) filesystem.Config {
	flush := true
	if cfg.FileSystem.FlushEnabled != nil {
		flush = *cfg.FileSystem.FlushEnabled
	}
	return filesystem.Config{
		ReadBufferSize:      cfg.FileSystem.ReadBufferSize,
		WriteBufferSize:     cfg.FileSystem.WriteBufferSize,
		ReadAheadQueueDepth: cfg.FileSystem.ReadAheadQueueDepth,
		BlockSize:           cfg.FileSystem.BlockSize,
		FlushEnabled:        flush,
		AtomicRenameDirs:    cfg.FileSystem.AtomicRenameDirs,
	}
}

// StreamConfig returns the pool sizes of the stream factory.
func StreamConfig(cfg *Config) stream.Config {
	return stream.Config{
		ReadConcurrency:  cfg.FileSystem.ReadConcurrency,
		WriteConcurrency: cfg.FileSystem.WriteConcurrency,
	}
}

// ============================================================================
// DFS
// ============================================================================

type dfsClientFactory struct {
	cfg dfs.Config
}

func (f *dfsClientFactory) Create(ctx context.Context, h filesystem.Handle) (rest.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := f.cfg
	cfg.Account = h.Account()
	cfg.FileSystem = h.FileSystem()
	client, err := dfs.New(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (f *dfsClientFactory) Close() error {
	return nil
}

// createDFSClientFactory creates clients talking to the DFS endpoint.
func createDFSClientFactory(cfg *Config) (ClientFactory, error) {
	type DFSStoreOptions struct {
		// Endpoint overrides the base URL, e.g. a local emulator
		Endpoint string `mapstructure:"endpoint"`
	}

	var opts DFSStoreOptions
	if err := mapstructure.Decode(cfg.Store.DFS, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode dfs store options: %w", err)
	}

	if cfg.Account.Key == "" {
		return nil, fmt.Errorf("dfs store: account key is required")
	}

	useHTTPS := true
	if cfg.Account.UseHTTPS != nil {
		useHTTPS = *cfg.Account.UseHTTPS
	}

	// One limiter shared by every handle: the throttle applies to the account.
	limiter := ratelimiter.New(cfg.Transport.RequestsPerSecond, cfg.Transport.Burst)
	if !limiter.Unlimited() {
		logger.Info("Throttling store requests to %.1f/s", cfg.Transport.RequestsPerSecond)
	}

	return &dfsClientFactory{cfg: dfs.Config{
		AccountKey:     cfg.Account.Key,
		EndpointSuffix: cfg.Account.EndpointSuffix,
		UseHTTPS:       useHTTPS,
		Endpoint:       opts.Endpoint,
		Timeout:        cfg.Transport.Timeout,
		Limiter:        limiter,
		Metrics:        metrics.NewRESTMetrics(),
	}}, nil
}

// ============================================================================
// Emulator
// ============================================================================

type emulatorClientFactory struct {
	store *emulator.Store
}

func (f *emulatorClientFactory) Create(ctx context.Context, h filesystem.Handle) (rest.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.store.Client(h.Account(), h.FileSystem()), nil
}

func (f *emulatorClientFactory) Close() error {
	return f.store.Close()
}

// createMemoryClientFactory creates clients over an in-memory emulator.
func createMemoryClientFactory(options map[string]any) (ClientFactory, error) {
	type MemoryStoreOptions struct {
		PageSize int `mapstructure:"page_size"`
	}

	var opts MemoryStoreOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory store options: %w", err)
	}
	if opts.PageSize < 0 {
		return nil, fmt.Errorf("memory store: page_size must not be negative")
	}

	store := emulator.NewMemory(emulator.Options{PageSize: opts.PageSize})
	return &emulatorClientFactory{store: store}, nil
}

// createBadgerClientFactory creates clients over a badger-backed emulator.
func createBadgerClientFactory(options map[string]any) (ClientFactory, error) {
	type BadgerStoreOptions struct {
		Dir        string `mapstructure:"dir"`
		InMemory   bool   `mapstructure:"in_memory"`
		SyncWrites bool   `mapstructure:"sync_writes"`
		PageSize   int    `mapstructure:"page_size"`
	}

	var opts BadgerStoreOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger store options: %w", err)
	}

	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger store: dir is required")
	}

	store, err := emulator.OpenBadger(emulator.BadgerConfig{
		Dir:        opts.Dir,
		InMemory:   opts.InMemory,
		SyncWrites: opts.SyncWrites,
	}, emulator.Options{PageSize: opts.PageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}

	logger.Debug("Badger store opened at %s", opts.Dir)
	return &emulatorClientFactory{store: store}, nil
}
