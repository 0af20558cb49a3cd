// Package multiaddr 为 BLE 传输提供多地址支持
//
// 本包基于 github.com/multiformats/go-multiaddr，注册 BLE 协议并提供
// BLE 地址的构造、匹配与取值辅助函数。
//
// # 地址格式
//
//	/ble/<id>
//
// <id> 为设备的逻辑标识（通常是 UUID 或硬件地址），不能为空、不能包含 "/"。
//
// # 使用示例
//
//	addr, err := multiaddr.NewBLE("aa:bb:cc:dd:ee:ff")
//	if err != nil {
//	    return err
//	}
//	id, err := multiaddr.BLEValue(addr) // "aa:bb:cc:dd:ee:ff"
//
// 协议在包初始化时注册到 go-multiaddr 的全局协议表，导入本包即可解析
// "/ble/..." 字符串。
package multiaddr
