// warp-cli is the command-line interface for interacting with a
// warpsyncd wallet.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("warp-cli v%s\n", version)

	case "help":
		printUsage()

	case "sync":
		if len(os.Args) < 3 {
			fmt.Println("Usage: warp-cli sync <subcommand>")
			fmt.Println("Subcommands: status, rewind <height>")
			os.Exit(1)
		}
		cmdSync(os.Args[2:])

	case "wallet":
		if len(os.Args) < 3 {
			fmt.Println("Usage: warp-cli wallet <subcommand>")
			fmt.Println("Subcommands: balance, address")
			os.Exit(1)
		}
		cmdWallet(os.Args[2:])

	case "tx":
		if len(os.Args) < 3 {
			fmt.Println("Usage: warp-cli tx <subcommand>")
			fmt.Println("Subcommands: send, plan")
			os.Exit(1)
		}
		cmdTransaction(os.Args[2:])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("warp-cli - command-line interface for warpsyncd")
	fmt.Println()
	fmt.Println("Usage: warp-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version   Show version information")
	fmt.Println("  help      Show this help message")
	fmt.Println("  sync      Synchronizer operations (status, rewind)")
	fmt.Println("  wallet    Wallet operations (balance, address)")
	fmt.Println("  tx        Transaction operations (send, plan)")
	fmt.Println()
	fmt.Println("Run 'warp-cli <command>' without a subcommand to list its subcommands.")
}

func cmdSync(args []string) {
	switch args[0] {
	case "status":
		fmt.Println("Synchronizer Status:")
		fmt.Println("  Height: 0")
		fmt.Println("  State: idle")

	case "rewind":
		if len(args) < 2 {
			fmt.Println("Usage: warp-cli sync rewind <height>")
			return
		}
		fmt.Printf("Rewinding to height %s...\n", args[1])
		fmt.Println("Rewind not yet wired to a running daemon; connect to warpsyncd's RPC to issue this live.")

	default:
		fmt.Printf("Unknown sync command: %s\n", args[0])
	}
}

func cmdWallet(args []string) {
	switch args[0] {
	case "balance":
		fmt.Println("Wallet Balance:")
		fmt.Println("  Transparent: 0")
		fmt.Println("  Sapling:     0")
		fmt.Println("  Orchard:     0")

	case "address":
		fmt.Println("Wallet Addresses:")
		fmt.Println("  Transparent: (none)")
		fmt.Println("  Sapling:     (none)")
		fmt.Println("  Orchard:     (none)")

	default:
		fmt.Printf("Unknown wallet command: %s\n", args[0])
	}
}

func cmdTransaction(args []string) {
	switch args[0] {
	case "send":
		fmt.Println("Usage: warp-cli tx send --to <address> --amount <zat> [--memo <text>]")

	case "plan":
		fmt.Println("Usage: warp-cli tx plan --to <address> --amount <zat>")
		fmt.Println("Builds and prints a TransactionPlan without broadcasting it.")

	default:
		fmt.Printf("Unknown transaction command: %s\n", args[0])
	}
}
