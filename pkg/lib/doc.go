// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - log: 日志封装
//   - multiaddr: BLE 多地址协议注册与解析
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - interfaces/: 组件公共接口
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-dep2p-ble/pkg/lib/log"
//	    "github.com/dep2p/go-dep2p-ble/pkg/lib/multiaddr"
//	)
package lib
