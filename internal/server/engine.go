package server

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emberkv/ember/internal/command"
	"github.com/emberkv/ember/internal/config"
	"github.com/emberkv/ember/internal/persistence"
	"github.com/emberkv/ember/internal/pubsub"
	"github.com/emberkv/ember/internal/replication"
	"github.com/emberkv/ember/internal/resp"
	"github.com/emberkv/ember/internal/store"
	"go.uber.org/zap"
)

// Engine is the explicit server context: it owns the store, the journal,
// the snapshot codec, the pub/sub and replication registries, and the
// dispatch table. Handlers receive it through their context instead of
// reaching for process globals.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	aof      *persistence.AOF
	rdb      *persistence.RDB
	channels *pubsub.Registry
	replicas *replication.Manager
	handlers map[command.Kind]handlerFunc
	logger   *zap.Logger

	startTime time.Time
	commands  atomic.Int64 // total commands processed

	stopGC   chan struct{}
	stopOnce sync.Once
}

// cmdContext carries one command invocation through its handler
type cmdContext struct {
	engine  *Engine
	session *Session
	peer    *Peer
	db      *store.Database
	args    [][]byte
}

// result is what a handler hands back to the dispatcher. write marks the
// command for the journal and the replication fan-out; a rejected write
// never sets it.
type result struct {
	reply resp.Value
	write bool
	quit  bool
}

type handlerFunc func(ctx *cmdContext) result

// NewEngine builds the server context, replays the journal into database 0,
// connects the configured replicas, and starts the expiration sweeper.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		store:     store.New(cfg.Store.MaxKeys),
		channels:  pubsub.NewRegistry(),
		replicas:  replication.NewManager(logger),
		rdb:       persistence.NewRDB(cfg.Persistence.RDBPath, logger),
		logger:    logger,
		startTime: time.Now(),
		stopGC:    make(chan struct{}),
	}
	e.registerHandlers()

	if cfg.Persistence.AOFPath != "" {
		aof, err := persistence.NewAOF(cfg.Persistence.AOFPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		e.aof = aof
		e.restoreAOF()
	}

	for _, addr := range cfg.Replication.ReplicaOf {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			logger.Warn("bad replica address", zap.String("addr", addr), zap.Error(err))
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			logger.Warn("bad replica port", zap.String("addr", addr), zap.Error(err))
			continue
		}
		if err := e.replicas.Add(host, port); err != nil {
			logger.Warn("replica connect failed", zap.Error(err))
		}
	}

	if cfg.GC.Enabled {
		interval, err := time.ParseDuration(cfg.GC.Interval)
		if err != nil {
			logger.Warn("invalid gc interval, sweeper disabled", zap.Error(err))
		} else {
			go e.startGCLoop(interval)
		}
	}

	return e, nil
}

// Execute resolves one request frame, runs its handler against the
// session's current database, and performs the post-commit side effects.
// The second return value reports whether the connection should close.
func (e *Engine) Execute(sess *Session, peer *Peer, frame [][]byte) (resp.Value, bool) {
	e.commands.Add(1)
	sess.requests++

	cmd := command.Resolve(frame)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command",
			zap.String("cmd", cmd.Name),
			zap.Int("args_count", len(cmd.Args)),
		)
	}

	if cmd.Kind == command.Unknown {
		return resp.MakeError(fmt.Sprintf("ERR unknown command '%s'", cmd.Name)), false
	}

	db, _ := e.store.DB(sess.dbIndex) // SELECT validated the index

	res := e.handlers[cmd.Kind](&cmdContext{
		engine:  e,
		session: sess,
		peer:    peer,
		db:      db,
		args:    cmd.Args,
	})

	if res.write {
		payload, err := resp.SerializeCommand(cmd.Name, cmd.Args)
		if err != nil {
			e.logger.Error("serialize for journal failed", zap.Error(err))
		} else {
			if e.aof != nil {
				e.aof.Append(payload)
			}
			e.replicas.Replicate(payload)
		}
	}

	return res.reply, res.quit
}

// restoreAOF replays the journal against database 0. The journal carries
// no database tag, so writes issued against other databases land here too.
func (e *Engine) restoreAOF() {
	frames, err := e.aof.Load()
	if err != nil {
		e.logger.Error("journal replay failed", zap.Error(err))
		return
	}
	if len(frames) == 0 {
		return
	}

	e.logger.Info("replaying journal", zap.Int("commands", len(frames)))

	db, _ := e.store.DB(0)
	applied := 0
	for _, frame := range frames {
		cmd := command.Resolve(frame)
		switch cmd.Kind {
		case command.Set:
			if len(cmd.Args) >= 2 {
				db.Set(string(cmd.Args[0]), cmd.Args[1])
				applied++
			}
		case command.Del:
			if len(cmd.Args) >= 1 {
				db.Del(string(cmd.Args[0]))
				applied++
			}
		case command.Expire:
			if len(cmd.Args) >= 2 {
				seconds, err := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
				if err == nil {
					db.Expire(string(cmd.Args[0]), seconds)
					applied++
				}
			}
		case command.HSet:
			if len(cmd.Args) >= 3 {
				db.HSet(string(cmd.Args[0]), string(cmd.Args[1]), cmd.Args[2]) //nolint:errcheck
				applied++
			}
		}
	}

	e.logger.Info("journal replay finished", zap.Int("applied", applied))
}

// startGCLoop actively sweeps expired keys so memory is reclaimed even for
// keys nobody reads again. A database whose sample came back with an
// expired ratio of at least gc.match_threshold is swept again immediately.
func (e *Engine) startGCLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for i := 0; i < store.NumDatabases; i++ {
				db, _ := e.store.DB(i)
				for {
					ratio := db.DeleteExpired(e.cfg.GC.SamplesPerCheck)
					if ratio == 0 || ratio < e.cfg.GC.MatchThreshold {
						break
					}
				}
			}
		case <-e.stopGC:
			return
		}
	}
}

// Shutdown stops the sweeper, drains and closes the journal, and tears
// down the replica connections. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopGC)
		if e.aof != nil {
			if err := e.aof.Close(); err != nil {
				e.logger.Error("journal close failed", zap.Error(err))
			}
		}
		e.replicas.Close()
	})
}
