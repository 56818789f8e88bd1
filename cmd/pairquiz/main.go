// Command pairquiz は2人のユーザーが互いにクイズを出し合うAPIサーバー。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションのみを実行する
//	seed         マイグレーションと固定ユーザーのシードを実行する
//	healthcheck  稼働中サーバーの/healthを確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/pairquiz/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pairquiz: %v\n", err)
		os.Exit(1)
	}
}
