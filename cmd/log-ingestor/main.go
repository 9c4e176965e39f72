// Package main 是 log-ingestor 扩展的入口点。
// 可执行文件名必须与注册时的扩展名称一致，部署在层的 /opt/extensions/log-ingestor。
package main

import (
	"os"

	"github.com/oriys/lambda-log-ingestor/cmd/log-ingestor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
