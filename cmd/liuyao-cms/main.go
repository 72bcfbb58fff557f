// Command liuyao-cms は六爻占卜の管理コンソールを起動する。
//
//	liuyao-cms [serve]     管理コンソールを起動する（デフォルト）
//	liuyao-cms migrate     データベースマイグレーションを適用する
//	liuyao-cms healthcheck 起動中のサーバーの /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/liuyao-cms/internal/app"
)

func main() {
	// .envは開発用。存在しなければ環境変数のみを使う
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
