package main

import "github.com/xdump/xdump/cmd"

func main() {
	cmd.Execute()
}
