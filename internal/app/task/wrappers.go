/*
 * @Description: cron 任务装饰器与日志适配
 * @Author: 安知鱼
 * @Date: 2025-06-29 22:36:09
 * @LastEditTime: 2025-10-18 11:48:15
 * @LastEditors: 安知鱼
 */
package task

import (
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobWrapper 是 cron.JobWrapper 的类型别名
type JobWrapper = cron.JobWrapper

// defaultSlowJobThreshold 超过该耗时的任务以 Warn 级别记录
const defaultSlowJobThreshold = 5 * time.Minute

// slogCronLogger 把 cron 内部日志转到 slog
type slogCronLogger struct {
	logger *slog.Logger
}

func newCronLogger(logger *slog.Logger) cron.Logger {
	return slogCronLogger{logger: logger.With("component", "cron")}
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	// cron 的 Info 日志非常频繁，降为 Debug
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}

// jobWrappers 组合 panic 恢复和执行日志，worker 队列与 cron 共用
func jobWrappers(logger *slog.Logger, extra ...JobWrapper) []JobWrapper {
	return append([]JobWrapper{
		NewPanicRecoveryWrapper(logger),
		NewLoggingWrapper(logger, defaultSlowJobThreshold),
	}, extra...)
}

// NewLoggingWrapper 为每次执行生成执行 ID 并记录耗时，任务实现了 LogAttrs 时带上它的字段
func NewLoggingWrapper(logger *slog.Logger, slowThreshold time.Duration) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			jobLogger := logger.With(
				slog.String("job_name", getJobName(j)),
				slog.String("execution_id", uuid.NewString()),
			)
			if withAttrs, ok := j.(interface{ LogAttrs() []any }); ok {
				jobLogger = jobLogger.With(withAttrs.LogAttrs()...)
			}

			start := time.Now()
			jobLogger.Debug("Job execution started")
			j.Run()

			elapsed := time.Since(start)
			if slowThreshold > 0 && elapsed > slowThreshold {
				jobLogger.Warn("Job execution slow", slog.Duration("duration", elapsed), slog.Duration("threshold", slowThreshold))
				return
			}
			jobLogger.Info("Job execution finished", slog.Duration("duration", elapsed))
		})
	}
}

// NewPanicRecoveryWrapper 任务 panic 时记录堆栈，不影响其它任务
func NewPanicRecoveryWrapper(logger *slog.Logger) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Job panicked",
						slog.String("job_name", getJobName(j)),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)
				}
			}()
			j.Run()
		})
	}
}

// getJobName 优先使用任务的 Name()，否则取类型名
func getJobName(j cron.Job) string {
	if named, ok := j.(interface{ Name() string }); ok {
		return named.Name()
	}
	t := reflect.TypeOf(j)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
