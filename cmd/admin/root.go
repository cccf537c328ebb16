package main

import (
	"context"

	"github.com/akolanti/PdfQA/internal/app"
	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/data/sqlStore"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/rag/namespace"
	"github.com/akolanti/PdfQA/internal/session"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "pdfqa-admin",
	Short:        "Operator commands for the PDF question answering service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger_i.Init(cfg.IsProd())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "optional YAML config file")
}

type indexAdmin interface {
	IndexName() string
	EnsureIndex(ctx context.Context) error
}

type documentLister interface {
	List(ctx context.Context) ([]commonModels.Document, error)
}

type sessionDestroyer interface {
	Destroy(ctx context.Context, sessionId string) error
}

// the open* funcs build what each command needs; tests replace them
var (
	openIndex     = defaultOpenIndex
	openDocuments = defaultOpenDocuments
	openSessions  = defaultOpenSessions
)

func defaultOpenIndex(ctx context.Context, cfg *config.Config) (indexAdmin, func(), error) {
	provider, closeIndex, err := app.NewIndexProvider(cfg.Vector)
	if err != nil {
		return nil, nil, err
	}
	//index administration never embeds
	return namespace.NewManager(provider, nil, app.NamespaceOptions(cfg)), closeIndex, nil
}

func defaultOpenDocuments(ctx context.Context, cfg *config.Config) (documentLister, func(), error) {
	db, err := sqlStore.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return session.NewManager(db, db, nil), func() { _ = db.Close() }, nil
}

func defaultOpenSessions(ctx context.Context, cfg *config.Config) (sessionDestroyer, func(), error) {
	db, err := sqlStore.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	provider, closeIndex, err := app.NewIndexProvider(cfg.Vector)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	partitions := namespace.NewManager(provider, nil, app.NamespaceOptions(cfg))
	return session.NewManager(db, db, partitions), func() {
		closeIndex()
		_ = db.Close()
	}, nil
}
