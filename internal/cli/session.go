package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/cardfs/internal/cache"
	"github.com/roach88/cardfs/internal/config"
	"github.com/roach88/cardfs/internal/identity"
	"github.com/roach88/cardfs/internal/remote"
	"github.com/roach88/cardfs/internal/remote/memdoc"
	"github.com/roach88/cardfs/internal/remote/surreal"
	"github.com/roach88/cardfs/internal/vfs"
)

// syncTimeout bounds how long a one-shot command waits for the first
// remote snapshot before giving up.
const syncTimeout = 10 * time.Second

// session is an engine over the cache, running for one command.
type session struct {
	cfg     config.Config
	userKey string
	engine  *vfs.Engine
	store   *cache.Store
	remote  remote.Channel
	closeFn func(context.Context) error
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// loadConfig reads the config and applies the global flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(config.Options{
		Path:    opts.Config,
		EnvFile: opts.EnvFile,
		Getenv:  opts.Getenv,
	})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.CachePath = opts.DB
	}
	if !opts.Verbose {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			logLevel.Set(level)
		}
	}
	return cfg, nil
}

// resolveUser picks the user key: --user, then a verified token, then the
// configured user.
func resolveUser(ctx context.Context, opts *RootOptions, cfg config.Config) (string, error) {
	var provider identity.Provider = identity.Static(cfg.User)
	switch {
	case opts.User != "":
		provider = identity.Static(opts.User)
	case cfg.Token != "":
		provider = identity.NewJWT(cfg.JWTSecret, cfg.Token)
	}
	key, err := provider.UserKey(ctx)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to resolve user", err)
	}
	return key, nil
}

// dialRemote connects the configured remote. The in-memory remote lives
// only as long as the process, so it is refused unless the session is long
// lived: a one-shot command would see an empty document and reset the
// cached tree.
func dialRemote(ctx context.Context, opts *RootOptions, cfg config.Config, longLived bool) (remote.Channel, func(context.Context) error, error) {
	if opts.Remote != nil {
		return opts.Remote, nil, nil
	}
	if cfg.Remote.Kind == config.RemoteMemory && !longLived {
		return nil, nil, NewExitError(ExitCommandError,
			"remote.kind memory only works with sync; use surreal or none for one-shot commands")
	}
	switch cfg.Remote.Kind {
	case config.RemoteSurreal:
		ch, err := surreal.Dial(ctx, surreal.Config{
			Endpoint:  cfg.Remote.Endpoint,
			Namespace: cfg.Remote.Namespace,
			Database:  cfg.Remote.Database,
			Username:  cfg.Remote.Username,
			Password:  cfg.Remote.Password,
		})
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to connect to remote", err)
		}
		return ch, ch.Close, nil
	case config.RemoteMemory:
		return memdoc.New(), nil, nil
	}
	return nil, nil, nil
}

// openSession opens the cache and starts an engine for the resolved user.
// With a remote and a user, it waits for the first snapshot so the command
// sees the synced tree.
func openSession(ctx context.Context, opts *RootOptions, longLived bool) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	userKey, err := resolveUser(ctx, opts, cfg)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "cli")
	st, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
	}

	ch, closeFn, err := dialRemote(ctx, opts, cfg, longLived)
	if err != nil {
		st.Close()
		return nil, err
	}

	engineOpts := []vfs.Option{
		vfs.WithIdentity(userKey),
		vfs.WithLogger(slog.Default()),
	}
	if ch != nil {
		engineOpts = append(engineOpts, vfs.WithRemote(ch))
	}
	eng := vfs.New(st, engineOpts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		if err := eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine stopped", "error", err)
		}
	}()

	s := &session{
		cfg:     cfg,
		userKey: userKey,
		engine:  eng,
		store:   st,
		remote:  ch,
		closeFn: closeFn,
		cancel:  cancel,
		logger:  logger,
	}
	if err := eng.Flush(ctx); err != nil {
		s.Close(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	if ch != nil && userKey != identity.Anonymous {
		if err := waitSynced(ctx, eng, syncTimeout); err != nil {
			s.Close(ctx)
			return nil, WrapExitError(ExitCommandError, "remote did not answer", err)
		}
	}
	logger.Debug("session open", "cache", cfg.CachePath, "user", userKey, "remote", cfg.Remote.Kind)
	return s, nil
}

// waitSynced blocks until the engine has applied a remote snapshot.
func waitSynced(ctx context.Context, eng *vfs.Engine, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	views := eng.Watch(ctx)
	for {
		select {
		case v, ok := <-views:
			if !ok {
				return vfs.ErrStopped
			}
			if v.State == vfs.StateSynced {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close flushes pending pushes, stops the engine and closes the cache and
// the remote connection.
func (s *session) Close(ctx context.Context) error {
	if err := s.engine.Flush(ctx); err != nil {
		s.logger.Warn("flush on close failed", "error", err)
	}
	s.cancel()
	<-s.engine.Done()

	var errs []string
	if s.closeFn != nil {
		if err := s.closeFn(ctx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close session: %s", strings.Join(errs, "; "))
	}
	return nil
}

// withSession runs fn with an open session and closes it afterwards.
func withSession(ctx context.Context, opts *RootOptions, fn func(*session) error) error {
	return runSession(ctx, opts, false, fn)
}

// withLongSession is withSession for commands that run until interrupted.
func withLongSession(ctx context.Context, opts *RootOptions, fn func(*session) error) error {
	return runSession(ctx, opts, true, fn)
}

func runSession(ctx context.Context, opts *RootOptions, longLived bool, fn func(*session) error) error {
	s, err := openSession(ctx, opts, longLived)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("error closing session", "error", err)
		}
	}()
	return fn(s)
}
