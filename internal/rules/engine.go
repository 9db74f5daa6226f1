// Package rules реализует движок применения правил трансформации.
//
// Движок — чистый, последовательный fold: правила применяются строго
// по порядку над одним workbook-состоянием; первая ошибка
// останавливает fold и возвращает накопленный (усечённый) execution
// log вместе с ошибкой. Параллелизм внутри одного job запрещён —
// корректность зависит от program order.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// Log — упорядоченный человекочитаемый трейс применения правил.
// Возвращается вместе с результатом независимо от успеха или ошибки.
type Log struct {
	lines []string
	now   func() time.Time
}

// NewLog создаёт пустой log. clock=nil — используется time.Now.
func NewLog(clock func() time.Time) *Log {
	if clock == nil {
		clock = time.Now
	}
	return &Log{now: clock}
}

// Infof добавляет информационную строку.
func (l *Log) Infof(format string, args ...any) {
	l.append("INFO", format, args...)
}

// Warnf добавляет warning-строку.
func (l *Log) Warnf(format string, args ...any) {
	l.append("WARN", format, args...)
}

// Errorf добавляет error-строку.
func (l *Log) Errorf(format string, args ...any) {
	l.append("ERROR", format, args...)
}

func (l *Log) append(level, format string, args ...any) {
	line := fmt.Sprintf("%s [%s] %s",
		l.now().UTC().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
	l.lines = append(l.lines, line)
}

// Lines возвращает накопленные строки.
func (l *Log) Lines() []string {
	return l.lines
}

// Engine применяет упорядоченный список правил к workbook-состоянию.
type Engine struct {
	registry *Registry
	clock    func() time.Time
}

// Option — опция конструктора Engine.
type Option func(*Engine)

// WithClock подменяет источник времени для строк лога (для тестов).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRegistry подменяет реестр applier'ов.
func WithRegistry(registry *Registry) Option {
	return func(e *Engine) { e.registry = registry }
}

// NewEngine создаёт движок с реестром по умолчанию.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply применяет правила по порядку.
//
// Возвращает финальное состояние и полный execution log. При ошибке
// состояние — последнее успешное, log усечён на момент ошибки,
// err — *TransformError.
//
// Каждое правило работает с копией состояния; мутации принимаются
// только при успехе правила.
func (e *Engine) Apply(ctx context.Context, state *workbook.State, ruleList []domain.Rule) (*workbook.State, []string, error) {
	log := NewLog(e.clock)
	log.Infof("starting transformation: %d rules, %d sheets", len(ruleList), len(state.Sheets))

	current := state

	for i, rule := range ruleList {
		// Coarse cancellation: проверяем только между правилами,
		// правило выполняется атомарно.
		if err := ctx.Err(); err != nil {
			log.Errorf("transformation aborted: %v", err)
			return current, log.Lines(), newTransformError(rule, err)
		}

		applier, err := e.registry.Get(rule.Type)
		if err != nil {
			log.Errorf("rule %d/%d %s: %v", i+1, len(ruleList), rule.Type, err)
			return current, log.Lines(), newTransformError(rule, err)
		}

		next := current.Clone()
		if err := applier.Apply(ctx, next, rule, log); err != nil {
			log.Errorf("rule %d/%d %s failed: %v", i+1, len(ruleList), rule.Type, err)
			if terr, ok := err.(*TransformError); ok {
				return current, log.Lines(), terr
			}
			return current, log.Lines(), newTransformError(rule, err)
		}

		next.Metadata.RulesApplied++
		current = next
	}

	log.Infof("transformation finished: %d rules applied", len(ruleList))
	return current, log.Lines(), nil
}
