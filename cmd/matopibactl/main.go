// Command matopibactl is the operator CLI for the forecast pipeline: it
// queries a running matopibad over HTTP, or triggers a one-off pipeline
// run directly against the configured backends.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		addr := fs.String("addr", "http://localhost:9900", "matopibad base URL")
		if err := fs.Parse(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		cmdStatus(*addr)

	case "query-snapshot":
		fs := flag.NewFlagSet("query-snapshot", flag.ExitOnError)
		addr := fs.String("addr", "http://localhost:9900", "matopibad base URL")
		city := fs.String("city", "", "filter to a single city code")
		if err := fs.Parse(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		cmdQuerySnapshot(*addr, *city)

	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ExitOnError)
		hour := fs.Int("hour", 0, "trigger hour UTC (0, 6, 12, or 18)")
		envFile := fs.String("env-file", ".env", "optional .env file to load first")
		configFile := fs.String("config.file", "", "optional YAML config overlay")
		cpuProfile := fs.String("cpuprofile", "", "write a CPU profile of the run to this file")
		if err := fs.Parse(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		cmdTrigger(*hour, *envFile, *configFile, *cpuProfile)

	case "version":
		fmt.Println("matopibactl (dev)")

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: matopibactl <command> [flags]

Commands:
  status          Show health and latest run metadata from a running matopibad.
  query-snapshot   Print the latest published forecasts.
  trigger          Run one orchestration pass directly against the configured backends.
  version          Print the client version.`)
}
