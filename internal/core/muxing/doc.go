// Package muxing 提供多路复用器的共享句柄与阻塞式子流
//
// SharedMuxer 以引用计数共享一个 StreamMuxer：最后一个引用释放时关闭连接。
// SubstreamRef 持有一个引用和一个子流标识，在轮询契约之上提供
// io.ReadWriteCloser，供协议升级（multistream 协商、编解码）直接使用。
//
// 子流的销毁只发生一次；连接的生命周期与任何单个子流解耦。
package muxing
