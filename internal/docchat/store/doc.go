// Package store 提供 DocChat 的双存储层。
//
// 相似度索引保存元素摘要的向量，内容存储保存元素原文，
// 两者共享同一个元素 ID 命名空间。写入顺序保证先内容后索引，
// 因此索引中的每个 ID 在内容存储中都必然存在。
package store
