package app

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	kit "github.com/Evan-Kreutzwiser/queensu-menu-bot/internal/transport"
	"github.com/Evan-Kreutzwiser/queensu-menu-bot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin requires the caller to administer the chat the command
	// was issued in (or be a configured owner).
	AccessAdmin
	AccessOwnerOnly
)

type Command struct {
	Route       string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	Log     logx.Logger
}

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger := log
					if req != nil && !req.Log.IsZero() {
						logger = req.Log
					}
					logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.Stack(logx.StackTrace(3, 16)),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if req != nil && !req.Log.IsZero() {
				logger = req.Log
			}
			err := next(ctx, req)
			fields := []logx.Field{
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("cmd", req.Command),
				logx.Duration("dur", time.Since(start)),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			} else {
				logger.Info("request ok", fields...)
			}
			return err
		}
	}
}

const defaultCommandTimeout = 30 * time.Second

// Commands routes incoming messages to registered handlers with access
// checks, panic recovery, and per-request logging.
type Commands struct {
	mu      sync.RWMutex
	byRoute map[string]Command
	order   []string
	owners  []int64

	log     logx.Logger
	adapter kit.Adapter

	jobs chan func()
}

func NewCommands(log logx.Logger, adapter kit.Adapter, owners []int64) *Commands {
	return &Commands{
		byRoute: map[string]Command{},
		owners:  append([]int64(nil), owners...),
		log:     log,
		adapter: adapter,
		jobs:    make(chan func(), 64),
	}
}

func (m *Commands) Register(cmds ...Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cmds {
		route := strings.ToLower(strings.TrimSpace(c.Route))
		if route == "" || c.Handle == nil {
			continue
		}
		if _, exists := m.byRoute[route]; !exists {
			m.order = append(m.order, route)
		}
		c.Route = route
		m.byRoute[route] = c
	}
}

// SetOwners updates the owner list used for access checks.
// Safe to call during hot-reload.
func (m *Commands) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Commands) ownersSnapshot() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.owners...)
}

// MenuCommands lists registered routes for the platform's command menu.
func (m *Commands) MenuCommands() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(m.order))
	for _, route := range m.order {
		c := m.byRoute[route]
		out = append(out, kit.BotCommand{Command: route, Description: c.Description})
	}
	return out
}

// DispatchLoop consumes updates until ctx is done. Handlers run on a small
// worker pool so a slow menu fetch never stalls unrelated commands.
func (m *Commands) DispatchLoop(ctx context.Context, updates <-chan kit.Update) {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message != nil {
				m.routeMessage(ctx, up.Message)
			}
		}
	}
}

func (m *Commands) routeMessage(ctx context.Context, msg *kit.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	// strip "@BotName" suffixes used in group chats
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	m.mu.RLock()
	cmd, ok := m.byRoute[word]
	m.mu.RUnlock()

	chat := kit.ChatTarget{ChatID: msg.ChatID}
	if !ok {
		// Only answer unknown slash commands in private chats; groups see
		// plenty of other bots' commands.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		}
		return
	}

	rid := newReqID()
	req := &Request{
		Message: msg,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Route,
		Args:    args,
		ReqID:   rid,
		Adapter: m.adapter,
		Log: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.String("cmd", cmd.Route),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)

	job := func() {
		if !m.authorize(ctx, cmd, req) {
			return
		}
		_ = final(ctx, req)
	}

	select {
	case m.jobs <- job:
	default:
		_, _ = m.adapter.SendText(ctx, chat, "Busy, try again in a moment", nil)
	}
}

// authorize enforces the command's access level, replying when the caller
// is not allowed. The admin check involves a platform call, so it runs on
// the worker, not the dispatch loop.
func (m *Commands) authorize(ctx context.Context, cmd Command, req *Request) bool {
	switch cmd.Access {
	case AccessEveryone:
		return true
	case AccessOwnerOnly:
		if isOwner(req.FromID, m.ownersSnapshot()) {
			return true
		}
	case AccessAdmin:
		if isOwner(req.FromID, m.ownersSnapshot()) {
			return true
		}
		ok, err := m.adapter.IsChatAdmin(ctx, req.Chat.ChatID, req.FromID)
		if err != nil {
			req.Log.Warn("admin check failed", logx.Err(err))
			_, _ = req.Adapter.SendText(ctx, req.Chat, "Sorry, I couldn't verify your permissions. Please try again.", nil)
			return false
		}
		if ok {
			return true
		}
	}
	_, _ = req.Adapter.SendText(ctx, req.Chat, "Only chat administrators can use this command.", nil)
	return false
}

func (m *Commands) helpText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := []string{"Commands:"}
	for _, route := range m.order {
		c := m.byRoute[route]
		line := "/" + route
		if c.Usage != "" {
			line = c.Usage
		}
		if c.Description != "" {
			line += " — " + c.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	return fmt.Sprintf("%s-%d", time.Now().Format("150405"), n)
}
