package servicebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/coreframe/coreframe/internal/extension"
)

// Executor runs an already-resolved extension ability. *extension.AbilityRegistry
// satisfies this.
type Executor interface {
	Execute(ctx context.Context, extName, name string, args map[string]any) (any, error)
}

// Client enqueues ability invocations for asynchronous execution.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq-backed Client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Enqueue submits an ability invocation to the default queue.
func (c *Client) Enqueue(ctx context.Context, payload AbilityPayload) (*asynq.TaskInfo, error) {
	task, err := NewAbilityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Worker processes queued ability invocations against an Executor.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Executor    Executor
	Concurrency int
}

// NewWorker constructs a Worker instance bound to Executor.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Executor == nil {
		return nil, errors.New("servicebus: executor required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeAbility, handleAbility(cfg.Executor, cfg.Logger))

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

func handleAbility(exec Executor, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AbilityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		if _, err := exec.Execute(ctx, payload.Extension, payload.Ability, payload.Args); err != nil {
			if errors.Is(err, extension.ErrAbilityNotFound) || errors.Is(err, extension.ErrCapabilityDenied) {
				return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			}
			logger.Warn("servicebus: ability failed", slog.String("extension", payload.Extension), slog.String("ability", payload.Ability), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// Run starts processing tasks until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("servicebus: worker not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
