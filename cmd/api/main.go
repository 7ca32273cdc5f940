package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/archive"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/handler"
	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/admission"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/ai"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
	interviewservice "github.com/HamdanKAlmehairbi/DellioProject/internal/service/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/prompt"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/speech"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

// retentionSweepInterval is how often the archive purges expired rows.
const retentionSweepInterval = 6 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	tokens, err := token.NewManager(cfg.Auth.SecretKey)
	if err != nil {
		log.Fatalf("failed to initialize token manager: %v", err)
	}

	st := newStore(ctx, cfg.Redis)

	conns := connection.NewManager()
	adm := admission.New(st, cfg.Interview.MaxConcurrentUsers)
	records := interviewservice.NewRecords(st)

	// Interview chat model
	var streamer interviewservice.Streamer
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without interview turns - check AI_API_KEY and AI_MODEL")
		} else {
			streamer = aiSvc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("chat model credentials not configured, interview turns disabled")
	}
	if streamer == nil {
		streamer = unavailableStreamer{}
	}

	// Prompt generation (primary + fallback providers)
	var prompts *prompt.Generator
	if cfg.Prompt.PrimaryEnabled() || cfg.Prompt.FallbackEnabled() {
		prompts, err = prompt.NewGenerator(ctx, cfg.Prompt)
		if err != nil {
			log.Printf("warning: failed to initialize prompt generator: %v", err)
			prompts = nil
		} else {
			log.Println("prompt generator initialized successfully")
		}
	} else {
		log.Println("prompt provider credentials not configured, document processing disabled")
	}

	// Speech synthesis and transcription
	var speechClient *speech.Client
	var synth interviewservice.Synthesizer = unavailableSynthesizer{}
	if cfg.Speech.Enabled() {
		speechClient = speech.NewClient(cfg.Speech, st)
		synth = cachingSynthesizer{client: speechClient}
		log.Println("speech service initialized successfully")
	} else {
		log.Println("speech credentials not configured, skipping speech initialization")
	}

	// Conversation archive
	var archiver interviewservice.Archiver
	if cfg.Archive.Enabled() {
		pg, err := archive.New(ctx, cfg.Archive.DatabaseURL)
		if err != nil {
			log.Printf("warning: failed to initialize conversation archive: %v", err)
		} else {
			archiver = pg
			defer pg.Close()
			go pg.RunRetention(ctx, retentionSweepInterval)
			log.Println("conversation archive initialized successfully")
		}
	} else {
		log.Println("DATABASE_URL not configured, conversation archiving disabled")
	}

	pipeline := interviewservice.NewPipeline(streamer, synth, records)
	interviews := interviewservice.NewService(cfg.Interview, records, pipeline, archiver)

	router := handler.NewRouter(handler.Deps{
		Tokens:        tokens,
		Interviews:    interviews,
		Admission:     adm,
		Connections:   conns,
		Prompts:       prompts,
		Speech:        speechClient,
		PromptTimeout: cfg.Interview.PromptTimeout,
	})

	startServer(ctx, cfg.Server, router)
}

// newStore connects to Redis when configured and falls back to the
// in-memory store otherwise.
func newStore(ctx context.Context, cfg config.RedisConfig) store.Store {
	if cfg.Enabled() {
		redisStore, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Addr(),
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			log.Printf("warning: failed to connect to Redis at %s: %v", cfg.Addr(), err)
			log.Println("falling back to in-memory store; interview state will not survive restarts")
		} else {
			log.Printf("connected to Redis at %s", cfg.Addr())
			return redisStore
		}
	} else {
		log.Println("REDIS_HOST not configured, using in-memory store")
	}
	return store.NewMemoryStore()
}

type unavailableStreamer struct{}

func (unavailableStreamer) OpenStream(context.Context, []model.Message) (ai.TokenStream, error) {
	return nil, errors.New("chat model not configured")
}

type unavailableSynthesizer struct{}

func (unavailableSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("speech synthesis not configured")
}

// cachingSynthesizer feeds the turn pipeline while parking each audio
// blob in the store for short-lived re-fetch.
type cachingSynthesizer struct {
	client *speech.Client
}

func (s cachingSynthesizer) Synthesize(ctx context.Context, userID, text string) ([]byte, error) {
	audio, _, err := s.client.SynthesizeAndCache(ctx, userID, text)
	return audio, err
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("interview backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
