package worker

import (
	"context"

	"breederchat/internal/logger"
	"breederchat/internal/platform/redis"
	"breederchat/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

// Server runs background tasks, currently durable cache write-behind.
type Server struct {
	srv *asynq.Server
	mux *Mux
	log *logger.Logger
}

func NewServer(r *redis.Service, mux *Mux, concurrency int) *Server {
	log := logger.New("Worker")
	srv := asynq.NewServer(r.AsynqRedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{tasks.QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.LogWarnf("task %s failed: %v", task.Type(), err)
		}),
	})
	return &Server{srv: srv, mux: mux, log: log}
}

// Start runs the server in the background.
func (s *Server) Start() error {
	s.log.LogInfo("starting task worker")
	return s.srv.Start(s.mux.Mux())
}

func (s *Server) Shutdown() { s.srv.Shutdown() }
