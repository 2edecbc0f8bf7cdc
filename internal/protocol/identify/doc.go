// Package identify 实现周期性身份交换协议 /ipfs/id/1.0.0
//
// 每条连接上由 PeriodicIdentification 按定时器打开出站子流，读取对端的
// 身份信息（公钥、监听地址、支持的协议、对端观测到的本端地址）；
// 对端打开的入站子流则由本端写入自己的信息后关闭。
//
// 消息格式为 uvarint 长度前缀加 protobuf 编码：
//
//	message Identify {
//	  bytes  publicKey       = 1;
//	  repeated bytes  listenAddrs = 2;
//	  repeated string protocols   = 3;
//	  bytes  observedAddr    = 4;
//	  string protocolVersion = 5;
//	  string agentVersion    = 6;
//	}
//
// PeriodicIdentifyBehaviour 汇集所有连接的结果，按先进先出顺序交给驱动方，
// 并缓存每个节点最近一次的信息。
package identify
