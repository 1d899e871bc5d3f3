// Package notify доставляет пользователю короткие уведомления (toast).
package notify

import (
	"sync"

	"go.uber.org/zap"
)

type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

type Notifier interface {
	Notify(level Level, msg string)
}

// Func позволяет передать функцию как Notifier.
type Func func(level Level, msg string)

func (f Func) Notify(level Level, msg string) { f(level, msg) }

// Nop глушит уведомления.
var Nop Notifier = Func(func(Level, string) {})

type Entry struct {
	Level   Level
	Message string
}

// Recorder запоминает уведомления, удобен в тестах и для CLI.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Messages возвращает тексты уведомлений заданного уровня.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

type zapNotifier struct {
	log *zap.Logger
}

// Logger пишет уведомления в zap.
func Logger(log *zap.Logger) Notifier {
	return zapNotifier{log: log}
}

func (z zapNotifier) Notify(level Level, msg string) {
	switch level {
	case Error:
		z.log.Error(msg, zap.String("notify", level.String()))
	case Warning:
		z.log.Warn(msg, zap.String("notify", level.String()))
	default:
		z.log.Info(msg, zap.String("notify", level.String()))
	}
}

// Multi рассылает уведомление всем получателям по порядку.
func Multi(ns ...Notifier) Notifier {
	return Func(func(level Level, msg string) {
		for _, n := range ns {
			n.Notify(level, msg)
		}
	})
}

// OrNop подставляет Nop вместо nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop
	}
	return n
}
