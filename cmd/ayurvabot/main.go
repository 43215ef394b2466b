// AyurvaBot 检索核心命令行入口.
//
// 用法:
//
//	ayurvabot index [-config path] [-force]     构建或复用向量索引
//	ayurvabot query [-config path] [-k n] 查询  执行混合检索
//	ayurvabot version                           打印版本
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SuyashMishr/AyurvaBot/config"
	"github.com/SuyashMishr/AyurvaBot/internal/metrics"
	"github.com/SuyashMishr/AyurvaBot/knowledge"
	"github.com/SuyashMishr/AyurvaBot/rag"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(ctx, os.Args[2:])
	case "query":
		err = runQuery(ctx, os.Args[2:])
	case "version":
		fmt.Println("ayurvabot", version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "用法: ayurvabot <index|query|version> [选项]")
}

func runIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径（YAML）")
	force := fs.Bool("force", false, "忽略持久化工件，强制重建")
	fs.Parse(args)

	pipeline, logger, err := buildPipeline(ctx, *configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *force {
		if _, err := pipeline.Store.Build(ctx, pipeline.Corpus()); err != nil {
			return err
		}
	} else if err := pipeline.EnsureIndex(ctx); err != nil {
		return err
	}

	meta := pipeline.Store.Metadata()
	fmt.Printf("索引就绪: %d 条向量 / %d 维 (build %s)\n", meta.Vectors, meta.Dimension, meta.BuildID)
	return nil
}

func runQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径（YAML）")
	topK := fs.Int("k", 0, "返回条数（0 用配置默认）")
	fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("缺少查询文本")
	}

	pipeline, logger, err := buildPipeline(ctx, *configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := pipeline.EnsureIndex(ctx); err != nil {
		return err
	}

	result, err := pipeline.Retrieve(ctx, query, *topK)
	if err != nil {
		return err
	}

	fmt.Printf("outcome=%s corrective=%v hits=%d\n", result.Outcome, result.Corrective, len(result.Chunks))
	for _, chunk := range result.Chunks {
		fmt.Printf("%2d. [%.4f] (%s) %s\n", chunk.Rank, chunk.Score, chunk.Topic, chunk.Summary)
	}
	return nil
}

func buildPipeline(ctx context.Context, configPath string) (*rag.Pipeline, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	tok, err := rag.NewTokenizerFromConfig(cfg.Tokenizer, logger)
	if err != nil {
		return nil, nil, err
	}
	chunker := rag.NewChunkingEngine(rag.ChunkingConfig{
		Strategy:      rag.ChunkingStrategy(cfg.Chunking.Strategy),
		TargetTokens:  cfg.Chunking.TargetTokens,
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}, tok, logger)
	tagger := rag.NewEntityTagger(rag.DefaultEntityTaggerConfig(), nil, logger)

	corpus, err := knowledge.BuildCorpus(ctx, knowledge.Passages(), chunker, tagger, 0, logger)
	if err != nil {
		return nil, nil, err
	}

	collector := metrics.NewCollector("ayurvabot", nil)
	pipeline, err := rag.NewPipeline(cfg, corpus, collector, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, logger, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("非法日志级别 %q", cfg.Level)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
