// Package rotation 实现日志文件集合的轮转。
//
// Policy 描述三个相互独立的阈值：最大字节数、最大年龄、最多备份数。
// Rotator 在策略不满足时把活动文件的内容移入编号备份链，并清空活动文件。
//
// # 文件布局
//
//	<dir>/<name>.<ext>        活动文件
//	<dir>/<name>.<ext>.1      最新的备份
//	<dir>/<name>.<ext>.N      更旧的备份，N 最大为 9
//
// 备份链的编号从 1 开始连续，链长不超过 Policy.Cap()。
// 轮转通过“读取内容 + 覆盖写入”在槽位之间平移，不依赖存储支持原子 rename。
// 编号上限 9 保证后缀是个位数，字典序与数值序一致。
package rotation
