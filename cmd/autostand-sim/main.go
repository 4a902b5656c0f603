package main

import "github.com/oshokin/autostand/cmd/autostand-sim/cmd"

func main() {
	cmd.Execute()
}
