// Package options contains flags and options for initializing the DocChat server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docchatsvc "github.com/kart-io/docchat/internal/docchat"
	cliflag "github.com/kart-io/docchat/pkg/app/cliflag"
	docchatopts "github.com/kart-io/docchat/pkg/options/docchat"
	httpopts "github.com/kart-io/docchat/pkg/options/http"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// DocChatOptions contains document processing configuration.
	DocChatOptions *docchatopts.Options `json:"docchat" mapstructure:"docchat"`

	// MilvusOptions contains Milvus database configuration (milvus index backend).
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains Redis configuration (redis content backend).
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		DocChatOptions:   docchatopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		ShutdownTimeout:  30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding.")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat.")
	o.DocChatOptions.AddFlags(fss.FlagSet("docchat"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"), "milvus.")
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.DocChatOptions.Complete(); err != nil {
		return fmt.Errorf("docchat: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.DocChatOptions.Validate()...)

	if o.DocChatOptions.IndexBackend == docchatopts.IndexBackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.DocChatOptions.ContentBackend == docchatopts.ContentBackendRedis {
		if err := o.RedisOptions.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a docchatsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docchatsvc.Config, error) {
	return &docchatsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		DocChatOptions:   o.DocChatOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		ShutdownTimeout:  o.ShutdownTimeout,
	}, nil
}
