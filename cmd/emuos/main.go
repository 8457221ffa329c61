// Command emuos is the interactive console for the CSOPESY emulator
// core: a readline-driven REPL over internal/console and
// internal/kernel.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/csopesy-go/emuos/internal/console"
	"github.com/csopesy-go/emuos/internal/kernel"
	"github.com/csopesy-go/emuos/internal/logging"
)

func main() {
	log := logging.New(logging.Options{
		Module:  "emuos",
		LogFile: "csopesy-debug.log",
		Console: io.Discard, // keep slog records out of the interactive prompt
	})

	k := kernel.New(log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		k.Shutdown()
		os.Exit(0)
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "emuos> ",
		HistoryFile: historyFilePath(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "emuos: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("CSOPESY emulator core. Type 'help' for a list of commands.")
	for {
		line, err := rl.Readline()
		if err != nil { // Ctrl-C or Ctrl-D
			break
		}
		cmd, err := console.Parse(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		out, err := k.Dispatch(cmd)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
		if cmd.Kind == console.Exit {
			break
		}
	}
	k.Shutdown()
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.emuos_history"
}
