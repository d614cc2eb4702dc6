// Command artizone は商品カタログ・お気に入り・認証APIのサーバーとワーカーを起動する。
//
// 使い方:
//
//	artizone [serve|worker|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/artizone/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
