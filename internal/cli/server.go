package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"utbk-exam-service/internal/app"
	"utbk-exam-service/internal/config"
	"utbk-exam-service/internal/domain"
	"utbk-exam-service/internal/infra/memory"
	pginfra "utbk-exam-service/internal/infra/postgres"
	redisinfra "utbk-exam-service/internal/infra/redis"
	transport "utbk-exam-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var tokens app.TokenRepository
	var loader memory.BankLoader
	if pool != nil {
		tokens = pginfra.NewTokenRepository(pool)
		loader = pginfra.NewBankLoader(pool)
	} else {
		demo := demoToken()
		tokens = memory.NewTokenStore(demo)
		loader = memory.NewStaticBankLoader(sampleBank())
		log.Printf("no postgres configured, demo token %s is ready", demo.Code)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	examCfg := app.DefaultConfig()
	examCfg.TokenTTL = config.TTLDuration(cfg.Exam.TokenTTL, examCfg.TokenTTL)
	examCfg.PrepareSeconds = config.IntOrDefault(cfg.Exam.PrepareSeconds, examCfg.PrepareSeconds)
	examCfg.BreakSeconds = config.IntOrDefault(cfg.Exam.BreakSeconds, examCfg.BreakSeconds)
	examCfg.LeaderboardSize = config.IntOrDefault(cfg.Exam.LeaderboardSize, examCfg.LeaderboardSize)

	service := app.NewExamService(tokens, bank, sessions, examCfg)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func demoToken() domain.AccessToken {
	return domain.AccessToken{
		Code:      "UTBK-DEMO01",
		OwnerName: "Demo Candidate",
		CreatedAt: time.Now(),
		Status:    domain.TokenUnused,
	}
}

// sampleBank fills every stage quota with placeholder questions; swap the
// loader for the Postgres-backed one in production.
func sampleBank() map[string][]domain.Question {
	pools := make(map[string][]domain.Question)
	for _, stage := range domain.Stages() {
		pool := make([]domain.Question, 0, stage.Questions)
		for i := 0; i < stage.Questions; i++ {
			pool = append(pool, domain.Question{
				Prompt:  fmt.Sprintf("%s sample question %d", stage.Name, i+1),
				Options: []string{"option 1", "option 2", "option 3", "option 4", "option 5"},
				Correct: domain.OptionLabels[i%len(domain.OptionLabels)],
			})
		}
		pools[stage.ID] = pool
	}
	return pools
}
