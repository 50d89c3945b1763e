package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/evidence/internal/api"
	"github.com/wonny/evidence/internal/api/handlers"
	"github.com/wonny/evidence/internal/scheduler"
	"github.com/wonny/evidence/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 채점 결과 조회 엔드포인트 제공
- 채점 실행 트리거 (동시에 1개)
- 진행 상황 websocket 스트림
- Prometheus 메트릭

Endpoints:
  GET  /health                          - Health check
  GET  /api/runs                        - 최근 run 목록
  POST /api/runs                        - 채점 실행 트리거
  GET  /api/runs/latest                 - 최신 run
  GET  /api/runs/latest/symbols/{sym}   - 최신 run 의 종목 1개
  GET  /api/runs/{id}                   - run 조회
  GET  /api/runs/progress               - 진행 상황 (websocket)
  GET  /metrics                         - Prometheus

Example:
  go run ./cmd/evidence api
  go run ./cmd/evidence api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "같은 프로세스에서 cron 스케줄러 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := runContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{withHub: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	if apiWithScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	router := api.NewRouter(api.Routes{
		Runs:     handlers.NewRunHandler(a.store, a.job, a.log),
		Progress: a.hub,
		Metrics:  a.metrics.Handler(),
	}, a.log)
	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}
	a.log.Info("Server stopped")
	return nil
}

// newScheduler registers the scoring and cache purge jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Options{
		MaxRetries: a.cfg.Scheduler.MaxRetries,
		RetryDelay: a.cfg.Scheduler.RetryDelay,
	}, a.log)

	if err := sched.AddJob(a.job); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewCachePurgeJob(a.memory, a.cfg.Scheduler.CachePurgeSchedule, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}
