// Switchboard sends prompts to interchangeable AI backends with per-provider
// key pools, automatic key rotation and bounded retries.
//
// Usage:
//
//	# One-shot question, streamed
//	switchboard ask --stream "What is a key pool?"
//
//	# Describe a screenshot with Gemini
//	switchboard ask --provider google --image shot.png "What is on screen?"
//
//	# Interactive chat with config hot reload
//	switchboard chat --config switchboard.yaml
//
//	# Same prompt to every configured provider
//	switchboard compare "Summarize RFC 9110 in one line"
//
//	# Key pool status and usage totals
//	switchboard keys
//	switchboard usage --since 24h
package main

import "os"

func main() {
	os.Exit(Execute())
}
