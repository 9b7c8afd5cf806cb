package docchatsvc

import (
	"time"

	docchatopts "github.com/kart-io/docchat/pkg/options/docchat"
	httpopts "github.com/kart-io/docchat/pkg/options/http"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
)

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	DocChatOptions   *docchatopts.Options
	MilvusOptions   *milvusopts.Options
	RedisOptions    *redisopts.Options
	ShutdownTimeout time.Duration
}

// ProviderConfigMap 合并 Embedding 和 Chat 配置为单个供应商配置。
// 两者共用同一个供应商实例（以及同一份请求级凭证），
// 仅模型名不同。
func (cfg *Config) ProviderConfigMap() map[string]any {
	config := cfg.EmbeddingOptions.ToConfigMap()
	config["chat_model"] = cfg.ChatOptions.Model
	return config
}
