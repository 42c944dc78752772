package server

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/emberkv/ember/internal/command"
	"github.com/emberkv/ember/internal/resp"
	"github.com/emberkv/ember/internal/store"
	"go.uber.org/zap"
)

func (e *Engine) registerHandlers() {
	e.handlers = map[command.Kind]handlerFunc{
		command.Ping:      ping,
		command.Echo:      echo,
		command.Set:       set,
		command.Get:       get,
		command.Del:       del,
		command.Exists:    exists,
		command.Keys:      keys,
		command.Expire:    expire,
		command.TTL:       ttl,
		command.MGet:      mget,
		command.Incr:      incr,
		command.Decr:      decr,
		command.IncrBy:    incrBy,
		command.DecrBy:    decrBy,
		command.Append:    appendCmd,
		command.StrLen:    strLen,
		command.HSet:      hset,
		command.HGet:      hget,
		command.Select:    selectDB,
		command.Info:      info,
		command.Save:      save,
		command.Load:      load,
		command.Auth:      auth,
		command.Subscribe: subscribe,
		command.Publish:   publish,
		command.Eval:      eval,
		command.Quit:      quit,
	}
}

func ok() resp.Value {
	return resp.MakeSimpleString("OK")
}

func ping(_ *cmdContext) result {
	return result{reply: resp.MakeSimpleString("PONG")}
}

func echo(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("ECHO requires a message")}
	}
	return result{reply: resp.MakeBulkString(ctx.args[0])}
}

func set(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("SET requires key and value")}
	}
	ctx.db.Set(string(ctx.args[0]), ctx.args[1])
	return result{reply: ok(), write: true}
}

func get(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("GET requires a key")}
	}
	value, found, err := ctx.db.Get(string(ctx.args[0]))
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	if !found {
		return result{reply: resp.MakeNilBulkString()}
	}
	return result{reply: resp.MakeBulkString(value)}
}

func del(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("DEL requires a key")}
	}
	removed := ctx.db.Del(string(ctx.args[0]))
	if removed {
		// Only a DEL that actually removed something is journaled.
		return result{reply: resp.MakeInteger(1), write: true}
	}
	return result{reply: resp.MakeInteger(0)}
}

func exists(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("EXISTS requires a key")}
	}
	if ctx.db.Exists(string(ctx.args[0])) {
		return result{reply: resp.MakeInteger(1)}
	}
	return result{reply: resp.MakeInteger(0)}
}

func keys(ctx *cmdContext) result {
	if len(ctx.args) == 0 || string(ctx.args[0]) != "*" {
		return result{reply: resp.MakeError("KEYS only supports wildcard *")}
	}
	all := ctx.db.Keys()
	values := make([]resp.Value, len(all))
	for i, key := range all {
		values[i] = resp.MakeBulkString([]byte(key))
	}
	return result{reply: resp.MakeArray(values)}
}

func expire(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("EXPIRE requires key and seconds")}
	}
	seconds, err := strconv.ParseInt(string(ctx.args[1]), 10, 64)
	if err != nil {
		return result{reply: resp.MakeError("Invalid seconds value")}
	}
	applied := ctx.db.Expire(string(ctx.args[0]), seconds)
	if applied {
		return result{reply: resp.MakeInteger(1), write: true}
	}
	return result{reply: resp.MakeInteger(0)}
}

func ttl(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("TTL requires a key")}
	}
	return result{reply: resp.MakeInteger(ctx.db.TTL(string(ctx.args[0])))}
}

func mget(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("MGET requires at least one key")}
	}
	values := make([]resp.Value, len(ctx.args))
	for i, key := range ctx.args {
		// Missing keys and wrong-typed keys both read as nil here.
		value, found, err := ctx.db.Get(string(key))
		if err != nil || !found {
			values[i] = resp.MakeNilBulkString()
			continue
		}
		values[i] = resp.MakeBulkString(value)
	}
	return result{reply: resp.MakeArray(values)}
}

func incr(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("INCR requires a key")}
	}
	return counterReply(ctx.db.IncrBy(string(ctx.args[0]), 1))
}

func decr(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("DECR requires a key")}
	}
	return counterReply(ctx.db.IncrBy(string(ctx.args[0]), -1))
}

func incrBy(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("INCRBY requires key and increment")}
	}
	delta, err := strconv.ParseInt(string(ctx.args[1]), 10, 64)
	if err != nil {
		return result{reply: resp.MakeError("ERR value is not an integer")}
	}
	return counterReply(ctx.db.IncrBy(string(ctx.args[0]), delta))
}

func decrBy(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("DECRBY requires key and decrement")}
	}
	delta, err := strconv.ParseInt(string(ctx.args[1]), 10, 64)
	if err != nil {
		return result{reply: resp.MakeError("ERR value is not an integer")}
	}
	if delta == math.MinInt64 {
		return result{reply: resp.MakeError(store.ErrOverflow.Error())}
	}
	return counterReply(ctx.db.IncrBy(string(ctx.args[0]), -delta))
}

func counterReply(n int64, err error) result {
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	return result{reply: resp.MakeInteger(n)}
}

func appendCmd(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("APPEND requires key and value")}
	}
	length, err := ctx.db.Append(string(ctx.args[0]), ctx.args[1])
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	return result{reply: resp.MakeInteger(int64(length))}
}

func strLen(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("STRLEN requires a key")}
	}
	length, err := ctx.db.StrLen(string(ctx.args[0]))
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	return result{reply: resp.MakeInteger(int64(length))}
}

func hset(ctx *cmdContext) result {
	if len(ctx.args) < 3 {
		return result{reply: resp.MakeError("HSET requires key, field, and value")}
	}
	added, err := ctx.db.HSet(string(ctx.args[0]), string(ctx.args[1]), ctx.args[2])
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	return result{reply: resp.MakeInteger(added), write: true}
}

func hget(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("HGET requires key and field")}
	}
	value, found, err := ctx.db.HGet(string(ctx.args[0]), string(ctx.args[1]))
	if err != nil {
		return result{reply: resp.MakeError(err.Error())}
	}
	if !found {
		return result{reply: resp.MakeNilBulkString()}
	}
	return result{reply: resp.MakeBulkString(value)}
}

func selectDB(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("SELECT requires database number")}
	}
	n, err := strconv.Atoi(string(ctx.args[0]))
	if err != nil {
		return result{reply: resp.MakeError("Invalid database number")}
	}
	if _, valid := ctx.engine.store.DB(n); !valid {
		return result{reply: resp.MakeError("Database index out of range")}
	}
	ctx.session.dbIndex = n
	return result{reply: ok()}
}

func info(ctx *cmdContext) result {
	e := ctx.engine
	uptime := int64(time.Since(e.startTime).Seconds())
	body := fmt.Sprintf("uptime:%d\ntotal_keys:%d\ncommands_processed:%d\ndatabases:%d\n",
		uptime, e.store.TotalKeys(), e.commands.Load(), store.NumDatabases)
	return result{reply: resp.MakeBulkString([]byte(body))}
}

func save(ctx *cmdContext) result {
	if err := ctx.engine.rdb.Save(ctx.db); err != nil {
		ctx.engine.logger.Error("snapshot save failed", zap.Error(err))
		return result{reply: resp.MakeError("ERR Save failed")}
	}
	return result{reply: ok()}
}

func load(ctx *cmdContext) result {
	if err := ctx.engine.rdb.Load(ctx.db); err != nil {
		ctx.engine.logger.Error("snapshot load failed", zap.Error(err))
		return result{reply: resp.MakeError("ERR Load failed")}
	}
	return result{reply: ok()}
}

// auth is a stub: it flips the session flag and always succeeds
func auth(ctx *cmdContext) result {
	ctx.session.authenticated = true
	return result{reply: ok()}
}

func subscribe(ctx *cmdContext) result {
	if len(ctx.args) == 0 {
		return result{reply: resp.MakeError("SUBSCRIBE requires channel name")}
	}
	for _, name := range ctx.args {
		channel := string(name)
		ctx.engine.channels.Subscribe(channel, ctx.peer)
		ctx.session.channels[channel] = struct{}{}
	}
	return result{reply: ok()}
}

func publish(ctx *cmdContext) result {
	if len(ctx.args) < 2 {
		return result{reply: resp.MakeError("PUBLISH requires channel and message")}
	}
	channel := string(ctx.args[0])
	// The delivered frame is [channel, message], serialized once.
	payload, err := resp.SerializeCommand(channel, [][]byte{ctx.args[1]})
	if err != nil {
		return result{reply: resp.MakeError("ERR internal error")}
	}
	n := ctx.engine.channels.Publish(channel, payload)
	return result{reply: resp.MakeInteger(int64(n))}
}

func eval(_ *cmdContext) result {
	return result{reply: resp.MakeError("ERR Scripting not implemented")}
}

func quit(_ *cmdContext) result {
	return result{reply: ok(), quit: true}
}
