package main

import "github.com/ali-hassan148/anthropic-claude-max-proxy/cmd"

func main() {
	cmd.Execute()
}
