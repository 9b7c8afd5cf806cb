// Package biz 实现 DocChat 的业务逻辑层。
//
// 摄取流水线：提取 → 分块 → 摘要 → 索引 → 持久化；
// 查询流水线：检索 → 流式生成 → 会话持久化。
// 各组件通过接口组合，由 Service 统一编排。
package biz
