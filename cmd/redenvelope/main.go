package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command
type Globals struct {
	Config   string `short:"c" default:"redenvelope.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Debug    bool   `help:"Enable debug logging"`
	Seed     *int64 `help:"Deterministic RNG seed (optional)"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Play     PlayCmd          `cmd:"" default:"1" help:"Play a draw in the terminal"`
	Serve    ServeCmd         `cmd:"" help:"Serve sessions over HTTP and WebSocket"`
	Simulate SimulateCmd      `cmd:"" help:"Play many draws and report statistics"`
	Ranges   RangesCmd        `cmd:"" help:"Print the opening range of every position"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("redenvelope"),
		kong.Description("Multi-digit red envelope price draw"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
