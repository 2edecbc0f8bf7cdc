// Package main 提供 p2pcore 命令行入口
package main

func main() {
	Execute()
}
