package main

import (
	"DeliveryDashboard/src/config"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// 向运行中的仪表盘服务发送 SIGHUP: 重新打开日志并重新加载数据集
func main() {
	cfg, _, err := config.LoadConfig("./config", "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	b, err := os.ReadFile(cfg.PidFile)
	if err != nil {
		log.Fatal("Failed to read pid file:", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		log.Fatal("Invalid pid file:", err)
	}

	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		log.Fatal("Failed to send SIGHUP:", err)
	}
	log.Printf("SIGHUP sent to %d", pid)
}
