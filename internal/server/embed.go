package server

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed all:dist
var embedFS embed.FS

// GetAssetsFS はスクリプトとスタイルのファイルシステムを返す
func GetAssetsFS() http.FileSystem {
	return http.FS(mustSub("dist/assets"))
}

// getIndexHTML は index.html の内容を返す
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("dist/index.html")
	if err != nil {
		panic(fmt.Sprintf("埋め込みindex.htmlの読み込みに失敗: %v", err))
	}
	return data
}

// 埋め込みのディレクトリはビルド時に確定するため失敗は起こらない
func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(embedFS, dir)
	if err != nil {
		panic(fmt.Sprintf("埋め込みファイルシステムの作成に失敗: %s: %v", dir, err))
	}
	return sub
}
