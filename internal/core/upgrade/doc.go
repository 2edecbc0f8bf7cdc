// Package upgrade 实现升级的协议协商与组合
//
// ApplyInbound / ApplyOutbound 先用 multistream-select 协商协议名称：
// 监听方使用 MultistreamMuxer.Negotiate，拨号方按偏好顺序使用 SelectOneOf；
// 协商成功后以选中名称对应的 ID 调用升级的入站或出站变体。
//
// 组合器：
//   - Choice：同一输出类型的多个升级，ID 被包装以区分来源
//   - Map：变换输出
//   - Erase / EraseInbound / EraseOutbound：输出擦除为 any
//   - Denied：不声明任何协议，协商必然失败
package upgrade
