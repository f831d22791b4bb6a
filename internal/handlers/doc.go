// Package handlers 提供参考的消息处理器实现：
// 问候响应与链上代币转账。它们只通过 agent.MessageHandler
// 契约与运行时交互，并各自负责自己的环路防护。
package handlers
