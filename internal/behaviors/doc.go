// Package behaviors 提供参考的周期性行为实现：
// 随机消息生成与链上代币余额轮询。它们只通过 agent.Behavior
// 契约与运行时交互，是核心之外的协作方代码。
package behaviors
