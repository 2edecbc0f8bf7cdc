// Package proto 提供跨网络传输消息的分帧工具
//
// # 职能
//
// 协议消息以 protobuf 线格式编码（google.golang.org/protobuf/encoding/protowire），
// 每条消息前加无符号 varint 长度前缀（github.com/multiformats/go-varint）。
// 本包只负责分帧，消息字段由各协议包自行定义。
//
// # 与 pkg/types 的区别
//
// pkg/lib/proto 处理网络上的字节（wire format），
// pkg/types 定义 Go 内部数据结构（内存结构）。
//
// # 使用示例
//
//	if err := proto.WriteDelimited(stream, payload); err != nil {
//	    return err
//	}
//	msg, err := proto.ReadDelimited(stream, proto.DefaultMaxMessageSize)
package proto
