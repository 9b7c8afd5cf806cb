package model

// ElementKind 表示文档元素类型。
type ElementKind string

const (
	// KindText 文本块元素。
	KindText ElementKind = "text"
	// KindTable 表格元素。
	KindTable ElementKind = "table"
	// KindImage 图片元素。
	KindImage ElementKind = "image"
)

// Element 表示一个可索引的文档元素。
// ID 是相似度索引与内容存储之间唯一的关联键，
// 只有与元素类型对应的字段才会被填充。
type Element struct {
	// ID 全局唯一标识，摄取时生成，之后不可变。
	ID string `json:"id"`

	// Kind 元素类型（text/table/image）。
	Kind ElementKind `json:"kind"`

	// Source 所属文档标识（路径或文件名）。
	Source string `json:"source"`

	// Page 页码（1 起始，0 表示未知）。
	Page int `json:"page,omitempty"`

	// Sequence 元素在页内的出现序号，用于排序和去重。
	Sequence int `json:"sequence"`

	// Text 文本内容。Kind=text 时为块内容，Kind=table 时为纯文本回退表示。
	Text string `json:"text,omitempty"`

	// TableHTML 表格的结构化（HTML）表示。仅 Kind=table。
	TableHTML string `json:"table_html,omitempty"`

	// ImageDataURI 图片的自包含 data URI（PNG）。仅 Kind=image。
	ImageDataURI string `json:"image_data_uri,omitempty"`

	// Summary 摘要文本，摘要阶段之后才会被赋值。
	Summary string `json:"summary,omitempty"`
}

// ElementStats 按类型统计元素数量。
type ElementStats struct {
	Texts  int `json:"texts"`
	Tables int `json:"tables"`
	Images int `json:"images"`
}

// Count 返回元素总数。
func (s ElementStats) Count() int {
	return s.Texts + s.Tables + s.Images
}
