// Package main logctl 命令行入口
package main

import (
	"os"

	"github.com/omeyang/logkit/cmd/logctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
