// Package docchatsvc provides the DocChat Service server implementation.
package docchatsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/infra/app"
	"github.com/kart-io/docchat/pkg/infra/pool"
	"github.com/kart-io/docchat/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docchat/pkg/llm/gemini"
	_ "github.com/kart-io/docchat/pkg/llm/ollama"
	docchatopts "github.com/kart-io/docchat/pkg/options/docchat"
)

// Name is the name of the application.
const Name = "docchat"

// Server represents the DocChat server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting DocChat service...")

	// 2. 初始化工作池
	if err := pool.InitGlobal(); err != nil {
		return nil, fmt.Errorf("failed to initialize worker pools: %w", err)
	}
	logger.Info("Worker pools initialized")

	var closers []func()

	// 3. 初始化相似度索引
	index, milvusClose, err := cfg.newVectorIndex(ctx)
	if err != nil {
		return nil, err
	}
	if milvusClose != nil {
		closers = append(closers, milvusClose)
	}
	closers = append(closers, func() { _ = index.Close(context.Background()) })
	logger.Infow("Similarity index initialized", "backend", cfg.DocChatOptions.IndexBackend)

	// 4. 初始化内容存储
	content, err := cfg.newContentStore(ctx)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = content.Close(context.Background()) })
	logger.Infow("Content store initialized", "backend", cfg.DocChatOptions.ContentBackend)

	// 5. 初始化持久化层
	if err := docutil.EnsureDir(cfg.DocChatOptions.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	manifest, err := store.NewManifest(cfg.DocChatOptions.ManifestPath)
	if err != nil {
		return nil, err
	}
	conversations, err := store.NewConversations(cfg.DocChatOptions.ConversationsPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Persistence layer initialized")

	// 6. 初始化 LLM 供应商
	provider, err := llm.NewProvider(cfg.EmbeddingOptions.Provider, cfg.ProviderConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	logger.Infow("LLM provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"embed_model", cfg.EmbeddingOptions.Model,
		"chat_model", cfg.ChatOptions.Model,
	)

	// 7. 初始化 Biz 层
	opts := cfg.DocChatOptions
	extractor := biz.NewPartitionExtractor(opts.PartitionerURL, opts.MinImageWidth, opts.MinImageHeight)
	chunker := biz.NewChunker(opts.ChunkSize, opts.ChunkOverlap)
	indexer := biz.NewIndexer(index, content)
	ingestor := biz.NewIngestor(extractor, chunker, indexer, manifest, conversations)
	retriever := biz.NewRetriever(index, content, opts.TopK, opts.MaxImages)
	generator := biz.NewGenerator()
	service := biz.NewService(provider, ingestor, retriever, generator, manifest, conversations)
	logger.Infow("DocChat service initialized",
		"chunk_size", opts.ChunkSize,
		"chunk_overlap", opts.ChunkOverlap,
		"top_k", opts.TopK,
		"max_images", opts.MaxImages,
	)

	// 8. 初始化 Handler 层并注册路由
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = cfg.HTTPOptions.MaxUploadSize
	router.Register(engine, handler.NewHandler(service, opts.UploadDir))

	logger.Info("DocChat service is ready")
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// newVectorIndex 按配置创建相似度索引后端。
func (cfg *Config) newVectorIndex(ctx context.Context) (store.VectorIndex, func(), error) {
	switch cfg.DocChatOptions.IndexBackend {
	case docchatopts.IndexBackendMilvus:
		client, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		index, err := store.NewMilvusIndex(ctx, client, cfg.DocChatOptions.Collection, cfg.DocChatOptions.EmbeddingDim)
		if err != nil {
			_ = client.Close(context.Background())
			return nil, nil, err
		}
		return index, func() { _ = client.Close(context.Background()) }, nil

	default:
		index, err := store.NewLocalIndex(cfg.DocChatOptions.IndexPath)
		if err != nil {
			return nil, nil, err
		}
		return index, nil, nil
	}
}

// newContentStore 按配置创建内容存储后端。
func (cfg *Config) newContentStore(ctx context.Context) (store.ContentStore, error) {
	switch cfg.DocChatOptions.ContentBackend {
	case docchatopts.ContentBackendRedis:
		return store.NewRedisContent(ctx, cfg.RedisOptions)
	default:
		return store.NewFileContent(cfg.DocChatOptions.StoreDir)
	}
}

// Run starts the server and listens for termination signals.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		_ = pool.CloseGlobalTimeout(s.shutdownTimeout)
		for _, closeFn := range s.closers {
			closeFn()
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down DocChat service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("DocChat service stopped")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Index backend: %s\n", cfg.DocChatOptions.IndexBackend)
	fmt.Printf("  Content backend: %s\n", cfg.DocChatOptions.ContentBackend)
}
