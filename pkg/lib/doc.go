// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - async: 轮询模型下的唤醒信号与后台 Future
//   - log: 日志封装
//   - proto: 长度前缀（varint）消息读写
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - interfaces/: 组件公共接口（架构核心）
//   - types/: 公共类型定义（架构核心）
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-p2pcore/pkg/lib/async"
//	    "github.com/dep2p/go-p2pcore/pkg/lib/log"
//	)
package lib
