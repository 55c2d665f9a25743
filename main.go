package main

import "github.com/Norgate-AV/abuild/cmd"

func main() {
	cmd.Execute()
}
