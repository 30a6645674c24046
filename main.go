// Package main is the entry point for the jarvis CLI.
package main

import "github.com/livngcorpse/jarvis/cmd"

func main() {
	cmd.Execute()
}
