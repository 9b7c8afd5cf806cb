// Package docchat provides document ingestion and retrieval configuration options.
package docchat

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 后端类型。
const (
	IndexBackendLocal  = "local"
	IndexBackendMilvus = "milvus"

	ContentBackendFile  = "file"
	ContentBackendRedis = "redis"
)

// Options contains document processing and retrieval configuration.
type Options struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxImages is the maximum number of images included in retrieved context.
	MaxImages int `json:"max-images" mapstructure:"max-images"`

	// MinImageWidth/MinImageHeight 过滤装饰性小图的像素阈值。
	MinImageWidth  int `json:"min-image-width" mapstructure:"min-image-width"`
	MinImageHeight int `json:"min-image-height" mapstructure:"min-image-height"`

	// IndexBackend selects the similarity index backend (local, milvus).
	IndexBackend string `json:"index-backend" mapstructure:"index-backend"`

	// ContentBackend selects the content store backend (file, redis).
	ContentBackend string `json:"content-backend" mapstructure:"content-backend"`

	// Collection is the name of the Milvus collection (milvus backend only).
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// DataDir is the root directory for all persisted state.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// UploadDir 上传文件保存目录，默认为 DataDir/uploads。
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// StoreDir 内容存储目录（file 后端），默认为 DataDir/store。
	StoreDir string `json:"store-dir" mapstructure:"store-dir"`

	// IndexPath 本地索引文件路径（local 后端），默认为 DataDir/index.json。
	IndexPath string `json:"index-path" mapstructure:"index-path"`

	// ManifestPath 文档清单文件路径，默认为 DataDir/documents.json。
	ManifestPath string `json:"manifest-path" mapstructure:"manifest-path"`

	// ConversationsPath 会话持久化文件路径，默认为 DataDir/conversations.json。
	ConversationsPath string `json:"conversations-path" mapstructure:"conversations-path"`

	// PartitionerURL 文档切分服务地址。
	PartitionerURL string `json:"partitioner-url" mapstructure:"partitioner-url"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      2500,
		ChunkOverlap:   500,
		TopK:           20,
		MaxImages:      4,
		MinImageWidth:  100,
		MinImageHeight: 100,
		IndexBackend:   IndexBackendLocal,
		ContentBackend: ContentBackendFile,
		Collection:     "docchat_elements",
		EmbeddingDim:   768,
		DataDir:        "_output/docchat-data",
		PartitionerURL: "http://127.0.0.1:8000/general/v0/general",
	}
}

// AddFlags adds flags for docchat options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"docchat.chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"docchat.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"docchat.top-k", o.TopK, "Number of results from similarity search.")
	fs.IntVar(&o.MaxImages, options.Join(prefixes...)+"docchat.max-images", o.MaxImages, "Maximum number of images in retrieved context.")
	fs.IntVar(&o.MinImageWidth, options.Join(prefixes...)+"docchat.min-image-width", o.MinImageWidth, "Minimum pixel width for extracted images.")
	fs.IntVar(&o.MinImageHeight, options.Join(prefixes...)+"docchat.min-image-height", o.MinImageHeight, "Minimum pixel height for extracted images.")
	fs.StringVar(&o.IndexBackend, options.Join(prefixes...)+"docchat.index-backend", o.IndexBackend, "Similarity index backend (local, milvus).")
	fs.StringVar(&o.ContentBackend, options.Join(prefixes...)+"docchat.content-backend", o.ContentBackend, "Content store backend (file, redis).")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"docchat.collection", o.Collection, "Milvus collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"docchat.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.DataDir, options.Join(prefixes...)+"docchat.data-dir", o.DataDir, "Root directory for persisted state.")
	fs.StringVar(&o.UploadDir, options.Join(prefixes...)+"docchat.upload-dir", o.UploadDir, "Directory for uploaded files.")
	fs.StringVar(&o.StoreDir, options.Join(prefixes...)+"docchat.store-dir", o.StoreDir, "Directory for the file content store.")
	fs.StringVar(&o.IndexPath, options.Join(prefixes...)+"docchat.index-path", o.IndexPath, "Path of the local index file.")
	fs.StringVar(&o.ManifestPath, options.Join(prefixes...)+"docchat.manifest-path", o.ManifestPath, "Path of the document manifest file.")
	fs.StringVar(&o.ConversationsPath, options.Join(prefixes...)+"docchat.conversations-path", o.ConversationsPath, "Path of the conversations file.")
	fs.StringVar(&o.PartitionerURL, options.Join(prefixes...)+"docchat.partitioner-url", o.PartitionerURL, "Document partitioning service URL.")
}

// Validate validates the docchat options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.MaxImages < 0 {
		errs = append(errs, fmt.Errorf("max-images must be non-negative"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.IndexBackend != IndexBackendLocal && o.IndexBackend != IndexBackendMilvus {
		errs = append(errs, fmt.Errorf("index-backend must be 'local' or 'milvus'"))
	}
	if o.ContentBackend != ContentBackendFile && o.ContentBackend != ContentBackendRedis {
		errs = append(errs, fmt.Errorf("content-backend must be 'file' or 'redis'"))
	}
	if o.PartitionerURL == "" {
		errs = append(errs, fmt.Errorf("partitioner-url is required"))
	}
	return errs
}

// Complete completes the docchat options with defaults derived from DataDir.
func (o *Options) Complete() error {
	if o.DataDir == "" {
		o.DataDir = "_output/docchat-data"
	}
	if o.UploadDir == "" {
		o.UploadDir = filepath.Join(o.DataDir, "uploads")
	}
	if o.StoreDir == "" {
		o.StoreDir = filepath.Join(o.DataDir, "store")
	}
	if o.IndexPath == "" {
		o.IndexPath = filepath.Join(o.DataDir, "index.json")
	}
	if o.ManifestPath == "" {
		o.ManifestPath = filepath.Join(o.DataDir, "documents.json")
	}
	if o.ConversationsPath == "" {
		o.ConversationsPath = filepath.Join(o.DataDir, "conversations.json")
	}
	return nil
}
