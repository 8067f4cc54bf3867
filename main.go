package main

import "github.com/dialsight/dialsight/cmd"

func main() {
	cmd.Execute()
}
