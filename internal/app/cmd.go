package app

// Command はpairquizバイナリのサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。起動前にマイグレーションと固定ユーザーのシードを行う。
	CommandServe Command = "serve"
	// CommandMigrate はマイグレーションだけを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandSeed はマイグレーションの後、ShivamとShreyaを登録して終了する。
	CommandSeed Command = "seed"
	// CommandHealthcheck は起動中のサーバーの/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandSeed):        CommandSeed,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数なし、または未知の名前はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// NeedsConfig はコマンドの実行に設定の読み込みとDB接続が必要かを返す。
// healthcheckはSERVER_PORTだけで動く。
func (c Command) NeedsConfig() bool {
	return c != CommandHealthcheck
}
