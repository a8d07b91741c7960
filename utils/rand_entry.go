package utils

import (
	"fmt"
	"math/rand"
	"time"
)

var (
	randStr = rand.New(rand.NewSource(time.Now().Unix()))
	letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
)

// GetTestPayload 获取测试使用的负载，长度为 n，内容只由 i 决定
func GetTestPayload(i, n int) []byte {
	b := make([]byte, n)
	for j := range b {
		b[j] = byte(i ^ j)
	}
	return b
}

// GetTestKey 获取带序号的测试负载
func GetTestKey(i int) []byte {
	return []byte(fmt.Sprintf("fcb-go-entry-%09d", i))
}

// RandomValue 生成长度为 n 的随机负载，用于测试
func RandomValue(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[randStr.Intn(len(letters))]
	}
	return b
}
